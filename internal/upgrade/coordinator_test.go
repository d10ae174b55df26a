package upgrade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) *inode.Ledger {
	t.Helper()
	l := inode.NewLedger()
	f, err := inode.OpenLedgerFile(filepath.Join(t.TempDir(), "ledger.bin"))
	if err != nil {
		t.Fatalf("OpenLedgerFile: %v", err)
	}
	if err := l.Attach(f); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	oid, _ := gitstore.ParseOID("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	if _, err := l.Allocate(oid, inode.TagBlob); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return l
}

func TestCoordinator_EnterLeave_RefusesDuringQuiesce(t *testing.T) {
	c := New(newTestLedger(t), "", discardLogger())

	if !c.Enter() {
		t.Fatal("Enter should succeed before any quiesce")
	}
	c.Leave()

	c.quiescing.Store(true)
	if c.Enter() {
		t.Fatal("Enter should refuse once quiescing")
	}
}

func TestCoordinator_Trigger_ExecFailureResumes(t *testing.T) {
	c := New(newTestLedger(t), "", discardLogger())

	wantErr := errors.New("no such binary")
	var capturedArgv, capturedEnv []string
	var capturedPath string
	c.exec = func(argv0 string, argv, envv []string) error {
		capturedPath = argv0
		capturedArgv = argv
		capturedEnv = envv
		return wantErr
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devNull.Close()

	err = c.Trigger(context.Background(), int(devNull.Fd()), 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected Trigger to surface the exec error")
	}
	if c.Quiescing() {
		t.Fatal("Quiescing should be cleared after a failed exec")
	}
	if capturedPath == "" {
		t.Fatal("exec was never invoked")
	}
	if len(capturedArgv) == 0 || capturedArgv[0] != capturedPath {
		t.Fatalf("argv[0] = %v, want %v", capturedArgv, capturedPath)
	}

	foundFD := false
	for _, kv := range capturedEnv {
		if hasEnvKey(kv, FUSEFDEnv) {
			foundFD = true
		}
	}
	if !foundFD {
		t.Fatalf("env %v missing %s", capturedEnv, FUSEFDEnv)
	}
}

func TestCoordinator_Trigger_WaitsForInflight(t *testing.T) {
	c := New(newTestLedger(t), "", discardLogger())

	if !c.Enter() {
		t.Fatal("Enter failed")
	}

	releaseErr := make(chan error, 1)
	c.exec = func(argv0 string, argv, envv []string) error {
		return errors.New("exec not reached in this test path")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Leave()
	}()

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devNull.Close()

	go func() {
		releaseErr <- c.Trigger(context.Background(), int(devNull.Fd()), time.Second)
	}()

	select {
	case err := <-releaseErr:
		if err == nil {
			t.Fatal("expected exec stub error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Trigger did not return after in-flight request released")
	}
}

func TestHandoverEnv_ReplacesRatherThanDuplicates(t *testing.T) {
	t.Setenv(FUSEFDEnv, "99")
	t.Setenv(StateEnv, "/old/path")

	env := handoverEnv(7, "/new/path")

	var fdCount, stateCount int
	for _, kv := range env {
		if hasEnvKey(kv, FUSEFDEnv) {
			fdCount++
			if kv != FUSEFDEnv+"=7" {
				t.Fatalf("got %q, want %s=7", kv, FUSEFDEnv)
			}
		}
		if hasEnvKey(kv, StateEnv) {
			stateCount++
			if kv != StateEnv+"=/new/path" {
				t.Fatalf("got %q, want %s=/new/path", kv, StateEnv)
			}
		}
	}
	if fdCount != 1 || stateCount != 1 {
		t.Fatalf("fdCount=%d stateCount=%d, want 1 and 1", fdCount, stateCount)
	}
}

func TestAdoptFromEnv(t *testing.T) {
	t.Setenv(FUSEFDEnv, "42")
	t.Setenv(StateEnv, "/ledger/path")

	fd, statePath, ok := AdoptFromEnv()
	if !ok || fd != 42 || statePath != "/ledger/path" {
		t.Fatalf("got (%d, %q, %v), want (42, /ledger/path, true)", fd, statePath, ok)
	}
}

func TestAdoptFromEnv_NotPresent(t *testing.T) {
	os.Unsetenv(FUSEFDEnv)
	os.Unsetenv(StateEnv)

	_, _, ok := AdoptFromEnv()
	if ok {
		t.Fatal("expected ok=false with no handover env set")
	}
}
