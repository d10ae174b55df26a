package resolver

import (
	"errors"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

// errStale marks an inode that is neither synthetic nor present in the
// ledger — spec.md §7's ESTALE row.
var errStale = errors.New("resolver: inode unknown to ledger")

// enter brackets one FUSE dispatch with the hot-upgrade coordinator's
// Enter/Leave, per spec.md §4.E step 2: in-flight requests must be
// able to finish before a handover proceeds. Every node method that
// does real work (as opposed to readonly.go's always-EROFS stubs)
// calls this first and defers the returned leave func; a non-zero
// errno means a quiesce is in progress and the caller must return
// immediately without touching the object store or ledger.
func (f *FS) enter() (leave func(), errno syscall.Errno) {
	if f.Coordinator == nil {
		return func() {}, gofs.OK
	}
	if !f.Coordinator.Enter() {
		return func() {}, syscall.EAGAIN
	}
	return f.Coordinator.Leave, gofs.OK
}

// fsErrno maps an internal error to the POSIX-equivalent errno spec.md
// §7's table names.
func fsErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return gofs.OK
	case errors.Is(err, gitstore.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, inode.ErrClash):
		return syscall.EUCLEAN
	case errors.Is(err, errStale):
		return syscall.ESTALE
	case errors.Is(err, gitstore.ErrIO):
		return syscall.EIO
	default:
		return syscall.EIO
	}
}
