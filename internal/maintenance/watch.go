package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

// watchDebounce coalesces a burst of filesystem events (an exporter
// writing a file in several syscalls) into a single import attempt.
const watchDebounce = 500 * time.Millisecond

// WatchExportDir watches dir for new or rewritten .jsonl files and
// imports each one through importer, the "watch export directory"
// mode spec's ambient stack assigns to fsnotify. It blocks until ctx
// is canceled. Missing directories and transient watcher errors are
// logged and do not stop the loop — a watched drop zone is expected to
// come and go as operators export into it.
func WatchExportDir(ctx context.Context, dir string, engine *chain.Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		logx.Warnf("maintenance: watch %s: %v", dir, err)
	}

	var timer *time.Timer
	pending := ""
	fire := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			pending = event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- pending:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logx.Warnf("maintenance: watcher error: %v", err)

		case path := <-fire:
			importWatchedFile(ctx, engine, path)
		}
	}
}

func importWatchedFile(ctx context.Context, engine *chain.Engine, path string) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		logx.Warnf("maintenance: watch: open %s: %v", path, err)
		return
	}
	defer func() { _ = f.Close() }()

	result, err := engine.Import(ctx, f)
	if err != nil {
		logx.Warnf("maintenance: watch: import %s failed: %v", path, err)
		return
	}
	logx.Infof("maintenance: watch: imported %s: %s", path, result.Summary)
}
