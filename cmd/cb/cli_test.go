package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCB executes rootCmd once with args and returns everything written
// to stdout, the way a caller driving the real binary would see it.
func runCB(t *testing.T, args ...string) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	origStdout := os.Stdout
	os.Stdout = w

	rootCmd.SetArgs(args)
	execErr := rootCmd.Execute()

	os.Stdout = origStdout
	_ = w.Close()

	var buf strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		buf.WriteString(sc.Text())
		buf.WriteByte('\n')
	}
	_ = r.Close()

	if execErr != nil {
		t.Fatalf("cb %s: %v\noutput: %s", strings.Join(args, " "), execErr, buf.String())
	}
	return buf.String()
}

// lastNonEmptyLine returns the last non-blank line of output, where
// commands like `keys generate` print the public key after some
// human-readable preamble.
func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return ""
}

func TestCLI_InitAuthorizeAdmitShowValidateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chain.db")
	keyDir := filepath.Join(dir, "keys")

	runCB(t, "--db", dbPath, "init")

	out := runCB(t, "keys", "generate", "--out", keyDir)
	pubKey := lastNonEmptyLine(out)
	if pubKey == "" {
		t.Fatal("keys generate produced no public key on stdout")
	}

	entries, err := os.ReadDir(keyDir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", keyDir, err)
	}
	var privPath, pubPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".key") {
			privPath = filepath.Join(keyDir, e.Name())
		}
		if strings.HasSuffix(e.Name(), ".pub") {
			pubPath = filepath.Join(keyDir, e.Name())
		}
	}
	if privPath == "" || pubPath == "" {
		t.Fatalf("expected a .key and .pub file under %s, got %v", keyDir, entries)
	}

	runCB(t, "--db", dbPath, "authorize", pubKey, "cli-test-signer", "operator")
	runCB(t, "--db", dbPath, "admit", "hello ledger", "--key", privPath, "--pub", pubPath)

	show := runCB(t, "--db", dbPath, "show", "1")
	if !strings.Contains(show, "hello ledger") {
		t.Errorf("show 1 output = %q, want it to contain the admitted data", show)
	}

	validate := runCB(t, "--db", dbPath, "validate")
	if !strings.Contains(validate, "fully compliant") {
		t.Errorf("validate output = %q, want it to report full compliance", validate)
	}
}

func TestCLI_ConfigSetGetHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chain.db")
	runCB(t, "--db", dbPath, "init")

	runCB(t, "--db", dbPath, "config", "set", "retention.days", "30")
	got := strings.TrimSpace(runCB(t, "--db", dbPath, "config", "get", "retention.days"))
	if got != "30" {
		t.Errorf("config get retention.days = %q, want 30", got)
	}

	runCB(t, "--db", dbPath, "config", "set", "retention.days", "90")
	history := runCB(t, "--db", dbPath, "config", "history", "retention.days")
	if !strings.Contains(history, "30 -> 90") {
		t.Errorf("config history output = %q, want it to show the 30 -> 90 transition", history)
	}
}

func TestCLI_DaemonStatusReportsNotRunning(t *testing.T) {
	// Redirect the registry under a scratch HOME so this doesn't touch
	// the real operator's ~/.chain/registry.json.
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chain.db")
	runCB(t, "--db", dbPath, "init")

	status := runCB(t, "--db", dbPath, "daemon", "status")
	if !strings.Contains(status, "not running") {
		t.Errorf("daemon status output = %q, want it to report not running", status)
	}
}
