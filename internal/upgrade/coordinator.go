// Package upgrade is the Hot-Upgrade Coordinator: it owns the quiesce
// barrier and the re-exec handover that lets a running GitSnapFS
// process be replaced by a freshly built binary without unmounting.
//
// The fd-inheritance half of the handover (adopting an already-open
// FUSE channel fd instead of mounting again) is outside what
// github.com/hanwen/go-fuse/v2's public fs.Mount API exposes — see
// DESIGN.md's "internal/upgrade" entry for the documented limitation.
// Everything else — the quiesce/drain barrier, ledger flush, env
// handoff, and exec with resume-on-failure — is implemented here and
// is independently correct regardless of that limitation.
package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

// FUSEFDEnv and StateEnv are the environment variables the handover
// protocol uses to hand the next process its channel fd and ledger
// path, per spec.md §6.
const (
	FUSEFDEnv = "GITSNAPFS_FUSE_FD"
	StateEnv  = "GITSNAPFS_STATE"
)

// execFunc matches syscall.Exec's signature; swappable in tests so
// they can observe the argv/envv the coordinator would exec with
// instead of actually replacing the test binary.
type execFunc func(argv0 string, argv []string, envv []string) error

// Coordinator implements spec.md §4.E's upgrade sequence.
type Coordinator struct {
	ledger    *inode.Ledger
	statePath string
	log       *slog.Logger

	quiescing atomic.Bool
	inflight  sync.WaitGroup

	exec execFunc
}

// New constructs a Coordinator. statePath may be empty, matching a
// mount with no configured --state-file; the handover then still
// happens but the new process starts with an empty ledger (every
// inode is simply re-derived and re-bound on first access).
func New(ledger *inode.Ledger, statePath string, log *slog.Logger) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		statePath: statePath,
		log:       log,
		exec:      syscall.Exec,
	}
}

// Enter brackets the start of one FUSE request's dispatch. It returns
// false once a quiesce is in progress, telling the caller to refuse
// the request rather than let it race a handover; callers that get
// true must call Leave exactly once when the request's reply has been
// produced.
func (c *Coordinator) Enter() bool {
	if c.quiescing.Load() {
		return false
	}
	c.inflight.Add(1)
	if c.quiescing.Load() {
		// Lost the race: a quiesce started between the check above and
		// Add. Back out and let the caller refuse the request instead
		// of leaving the waiter stuck behind a barrier that already
		// closed.
		c.inflight.Done()
		return false
	}
	return true
}

// Leave ends one bracketed dispatch started by a successful Enter.
func (c *Coordinator) Leave() {
	c.inflight.Done()
}

// Quiescing reports whether a handover is in progress.
func (c *Coordinator) Quiescing() bool {
	return c.quiescing.Load()
}

// Trigger runs spec.md §4.E's five-step upgrade sequence: raise the
// quiesce flag, wait (bounded by quiesceWait) for in-flight requests
// to drain, flush the ledger, set the handover environment, and exec.
// If exec fails, the quiesce flag is cleared and Trigger returns the
// error; the caller keeps serving with the current binary exactly as
// it was before Trigger was called.
func (c *Coordinator) Trigger(ctx context.Context, fuseFD int, quiesceWait time.Duration) error {
	c.quiescing.Store(true)

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(quiesceWait):
		c.log.Warn("upgrade: quiesce wait expired with requests still in flight, proceeding anyway",
			"wait", quiesceWait)
	case <-ctx.Done():
		c.quiescing.Store(false)
		return ctx.Err()
	}

	if err := c.ledger.Flush(); err != nil {
		c.log.Error("upgrade: ledger flush failed, proceeding without a guaranteed-fresh state file", "error", err)
	}

	if err := clearCloexec(fuseFD); err != nil {
		c.quiescing.Store(false)
		return fmt.Errorf("upgrade: clear CLOEXEC on fd %d: %w", fuseFD, err)
	}

	env := handoverEnv(fuseFD, c.statePath)
	binary, err := os.Executable()
	if err != nil {
		c.quiescing.Store(false)
		return fmt.Errorf("upgrade: resolve own executable path: %w", err)
	}

	argv := append([]string{binary}, os.Args[1:]...)
	c.log.Info("upgrade: exec'ing replacement binary", "binary", binary, "fuse_fd", fuseFD)

	err = c.exec(binary, argv, env)

	// exec only returns on failure; a success replaces this process
	// and never reaches here.
	c.quiescing.Store(false)
	c.log.Error("upgrade: exec failed, resuming with the current binary", "error", err)
	return fmt.Errorf("upgrade: exec %s: %w", binary, err)
}

// handoverEnv builds the environment the new process inherits:
// os.Environ() with FUSEFDEnv and (if set) StateEnv replaced rather
// than duplicated, so a second upgrade doesn't accumulate stale pairs.
func handoverEnv(fuseFD int, statePath string) []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		if hasEnvKey(kv, FUSEFDEnv) || hasEnvKey(kv, StateEnv) {
			continue
		}
		out = append(out, kv)
	}
	out = append(out, fmt.Sprintf("%s=%d", FUSEFDEnv, fuseFD))
	if statePath != "" {
		out = append(out, fmt.Sprintf("%s=%s", StateEnv, statePath))
	}
	return out
}

func hasEnvKey(kv, key string) bool {
	return len(kv) > len(key) && kv[:len(key)] == key && kv[len(key)] == '='
}

// clearCloexec clears FD_CLOEXEC on fd so it survives the exec call
// below, porting original_source/src/upgrade.rs's clear_cloexec from
// nix's fcntl wrapper to golang.org/x/sys/unix.
func clearCloexec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("fcntl F_GETFD: %w", err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		return nil
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("fcntl F_SETFD: %w", err)
	}
	return nil
}
