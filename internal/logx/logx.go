// Package logx is the leveled logger shared by the daemon, indexer, and
// recovery subsystems. It gates verbose output behind an environment
// variable the way the teacher's internal/debug package gates its own
// trace logging, and rotates its file sink through lumberjack.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	mu      sync.Mutex
	std     = log.New(os.Stderr, "", log.LstdFlags)
	level   = LevelInfo
	sink    io.Writer = os.Stderr
	enabled           = os.Getenv("CB_DEBUG") != ""
)

// Init points the shared logger at a rotating file under dir, keeping
// stderr as a secondary sink for daemon-less CLI invocations.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	lj := &lumberjack.Logger{
		Filename:   dir + "/chain.log",
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	sink = io.MultiWriter(os.Stderr, lj)
	std = log.New(sink, "", log.LstdFlags)
	return nil
}

// SetLevel adjusts the minimum level that is actually emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func emit(l Level, prefix, format string, args ...any) {
	mu.Lock()
	cur := level
	logger := std
	mu.Unlock()
	if l > cur {
		return
	}
	logger.Output(3, prefix+fmt.Sprintf(format, args...)) //nolint:errcheck
}

func Errorf(format string, args ...any) { emit(LevelError, "ERROR ", format, args...) }
func Warnf(format string, args ...any)  { emit(LevelWarn, "WARN  ", format, args...) }
func Infof(format string, args ...any)  { emit(LevelInfo, "INFO  ", format, args...) }

// Debugf only emits when CB_DEBUG is set, matching the teacher's
// debug-gate convention, independent of SetLevel.
func Debugf(format string, args ...any) {
	if !enabled {
		return
	}
	mu.Lock()
	logger := std
	mu.Unlock()
	logger.Output(2, "DEBUG "+fmt.Sprintf(format, args...)) //nolint:errcheck
}
