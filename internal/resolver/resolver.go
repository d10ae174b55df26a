// Package resolver is the Path Resolver: it translates FUSE requests
// into Git object lookups and inode-allocator calls, and is otherwise
// stateless — everything it returns is derived fresh from the object
// store and the ledger, which is what lets the Hot-Upgrade Coordinator
// replace the process without losing any observable state.
package resolver

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
	"github.com/gitsnapfs/gitsnapfs/internal/upgrade"
)

// Options configures the TTLs the resolver reports to the kernel.
// Defaults follow SPEC_FULL.md §6.1 / spec.md §6.
type Options struct {
	AttrTTL  time.Duration
	EntryTTL time.Duration
	// RefTTL applies to /branches/*, /tags/*, and /HEAD, whether or not
	// the ref-freshness notifier is active.
	RefTTL time.Duration
	// CommitTTL applies to everything under /commits/<id>, which never
	// needs invalidation (an object id's content is immutable) but
	// still needs a TTL value to hand the kernel.
	CommitTTL time.Duration
}

// DefaultOptions matches spec.md §6's CLI defaults.
func DefaultOptions() Options {
	return Options{
		AttrTTL:   300 * time.Second,
		EntryTTL:  300 * time.Second,
		RefTTL:    2 * time.Second,
		CommitTTL: 300 * time.Second,
	}
}

const (
	inoRoot     inode.Ino = 1
	inoCommits  inode.Ino = 2
	inoBranches inode.Ino = 3
	inoTags     inode.Ino = 4
	inoHead     inode.Ino = 5
)

// FS holds everything shared across the node tree: the object store,
// the inode ledger, configured TTLs, and the synthetic-inode table for
// objects (gitlinks, refs) that have no Git object id of their own.
type FS struct {
	Store     *gitstore.Store
	Ledger    *inode.Ledger
	Options   Options
	StartTime time.Time

	synthetic *syntheticTable

	// Populated by rootNode.OnAdd once the tree is mounted, so the
	// ref-freshness notifier (internal/refwatch) has something to call
	// NotifyEntry on when a ref changes underneath a live mount.
	rootInode     *fs.Inode
	branchesInode *fs.Inode
	tagsInode     *fs.Inode

	// Coordinator, if set, is consulted by every node's read-dispatch
	// methods so the hot-upgrade coordinator's in-flight drain
	// (internal/upgrade.Coordinator.Trigger) actually has real requests
	// bracketed between Enter and Leave to wait for, instead of only
	// the calls its own tests make directly. Nil means no coordinator
	// is wired (e.g. in tests that construct an *FS directly), in which
	// case every dispatch proceeds unconditionally.
	Coordinator *upgrade.Coordinator
}

// New constructs the resolver's shared state. Call Root to get the
// fs.InodeEmbedder to pass to fs.Mount.
func New(store *gitstore.Store, ledger *inode.Ledger, opts Options) *FS {
	return &FS{
		Store:     store,
		Ledger:    ledger,
		Options:   opts,
		StartTime: time.Now(),
		synthetic: newSyntheticTable(),
	}
}

// Root returns the mountpoint's root node.
func (f *FS) Root() fs.InodeEmbedder {
	return &rootNode{fs: f}
}

// NotifyRef invalidates the kernel's cached dentry for a single ref
// name under /branches or /tags, so a concurrent reader sees the
// ref-freshness notifier's update instead of a stale cached Lookup
// result. Safe to call before the tree is mounted; it is then a no-op.
func (f *FS) NotifyRef(kind gitstore.RefKind, name string) {
	dir := f.branchesInode
	if kind == gitstore.RefTag {
		dir = f.tagsInode
	}
	if dir != nil {
		dir.NotifyEntry(name)
	}
}

// NotifyHead invalidates the kernel's cached dentry for /HEAD.
func (f *FS) NotifyHead() {
	if f.rootInode != nil {
		f.rootInode.NotifyEntry("HEAD")
	}
}
