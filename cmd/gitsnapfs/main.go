// gitsnapfs mounts a Git repository as a read-only FUSE filesystem:
// immutable commits under /commits/<id>, movable /branches and /tags
// symlinks, and a /HEAD symlink, all derived lazily from the Git
// object store with no background scan.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/gitsnapfs/gitsnapfs/internal/config"
	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
	"github.com/gitsnapfs/gitsnapfs/internal/refwatch"
	"github.com/gitsnapfs/gitsnapfs/internal/resolver"
	"github.com/gitsnapfs/gitsnapfs/internal/upgrade"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger); err != nil {
		logger.Error("gitsnapfs: fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// --takeover-fuse-fd is spec.md §6's flag-form equivalent of
	// GITSNAPFS_FUSE_FD; honor it the same way the env var is honored,
	// without overriding an env var a handover actually set.
	if cfg.TakeoverFuseFD >= 0 {
		if _, present := os.LookupEnv(upgrade.FUSEFDEnv); !present {
			os.Setenv(upgrade.FUSEFDEnv, strconv.Itoa(cfg.TakeoverFuseFD))
		}
	}

	// A process started by a hot-upgrade handover inherits its ledger
	// state path (and, in principle, the FUSE channel fd — see
	// DESIGN.md's internal/upgrade entry for why this binary still
	// calls fs.Mount cold instead of adopting fuseFD directly).
	if fuseFD, statePath, ok := upgrade.AdoptFromEnv(); ok {
		logger.Info("gitsnapfs: resuming after hot upgrade", "inherited_fuse_fd", fuseFD)
		if statePath != "" && cfg.StateFile == "" {
			cfg.StateFile = statePath
		}
	}

	store, err := gitstore.Open(cfg.Repo, cfg.TreeCacheSize, cfg.BlobCacheBytes)
	if err != nil {
		return fmt.Errorf("open repository %q: %w", cfg.Repo, err)
	}

	ledger := inode.NewLedger()
	if cfg.StateFile != "" {
		lf, err := inode.OpenLedgerFile(cfg.StateFile)
		if err != nil {
			return fmt.Errorf("open state file %q: %w", cfg.StateFile, err)
		}
		if err := ledger.Attach(lf); err != nil {
			return fmt.Errorf("replay state file %q: %w", cfg.StateFile, err)
		}
	}

	opts := resolver.Options{
		AttrTTL:   cfg.AttrTTL,
		EntryTTL:  cfg.EntryTTL,
		RefTTL:    cfg.RefTTL,
		CommitTTL: cfg.AttrTTL,
	}
	rfs := resolver.New(store, ledger, opts)

	coordinator := upgrade.New(ledger, cfg.StateFile, logger)
	rfs.Coordinator = coordinator

	watcher, err := refwatch.Watch(store.GitDir(), store, func(ev refwatch.Event) {
		switch ev.Kind {
		case refwatch.KindBranch:
			rfs.NotifyRef(gitstore.RefBranch, ev.Name)
		case refwatch.KindTag:
			rfs.NotifyRef(gitstore.RefTag, ev.Name)
		case refwatch.KindHead:
			rfs.NotifyHead()
		}
	}, logger)
	if err != nil {
		logger.Warn("gitsnapfs: ref-freshness notifier disabled, falling back to ref-ttl only", "error", err)
	} else {
		defer watcher.Close()
	}

	mountOpts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			FsName:     "gitsnapfs",
			Name:       "gitsnapfs",
			AllowOther: cfg.AllowOther,
			Debug:      false,
		},
	}

	logger.Info("gitsnapfs: mounting", "repo", cfg.Repo, "mountpoint", cfg.Mountpoint)
	server, err := fs.Mount(cfg.Mountpoint, rfs.Root(), mountOpts)
	if err != nil {
		return fmt.Errorf("mount %q: %w", cfg.Mountpoint, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGUSR1:
				logger.Info("gitsnapfs: received upgrade trigger")
				fuseFD, err := upgrade.DiscoverFuseFD()
				if err != nil {
					logger.Error("gitsnapfs: could not locate FUSE channel fd, skipping upgrade", "error", err)
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), cfg.QuiesceWait*5)
				err = coordinator.Trigger(ctx, fuseFD, cfg.QuiesceWait)
				cancel()
				if err != nil {
					logger.Error("gitsnapfs: hot upgrade failed, continuing to serve", "error", err)
				}
			default:
				logger.Info("gitsnapfs: received shutdown signal, unmounting", "signal", s)
				server.Unmount()
				return
			}
		}
	}()

	logger.Info("gitsnapfs: ready", "pid", os.Getpid())
	server.Wait()
	logger.Info("gitsnapfs: stopped")
	return nil
}
