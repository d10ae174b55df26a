package resolver

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

// gitSymlinkNode is a 120000-mode tree entry: its target is the blob's
// content verbatim, per spec.md §4.C's readlink contract.
type gitSymlinkNode struct {
	fs.Inode
	readOnly
	fs         *FS
	ino        inode.Ino
	oid        gitstore.OID
	commitTime time.Time
}

var (
	_ = (fs.NodeGetattrer)((*gitSymlinkNode)(nil))
	_ = (fs.NodeReadlinker)((*gitSymlinkNode)(nil))
)

func (n *gitSymlinkNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	size, err := n.fs.Store.BlobSize(n.oid)
	if err != nil {
		return fsErrno(err)
	}
	fillSymlinkAttr(&out.Attr, n.ino, uint64(size), n.commitTime)
	out.SetTimeout(n.fs.Options.CommitTTL)
	return fs.OK
}

func (n *gitSymlinkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	data, err := n.fs.Store.BlobBytes(n.oid)
	if err != nil {
		return nil, fsErrno(err)
	}
	return data, fs.OK
}

// refSymlinkNode is a /branches/<name> or /tags/<name> entry: a
// synthetic symlink whose target is "../commits/<oid>", resolved at
// Lookup time and fixed for the life of this node (the kernel will
// re-Lookup after RefTTL expires, producing a fresh target if the ref
// moved).
type refSymlinkNode struct {
	fs.Inode
	readOnly
	fs     *FS
	ino    inode.Ino
	target string
}

var (
	_ = (fs.NodeGetattrer)((*refSymlinkNode)(nil))
	_ = (fs.NodeReadlinker)((*refSymlinkNode)(nil))
)

func (n *refSymlinkNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillSymlinkAttr(&out.Attr, n.ino, uint64(len(n.target)), n.fs.StartTime)
	out.SetTimeout(n.fs.Options.RefTTL)
	return fs.OK
}

func (n *refSymlinkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	return []byte(n.target), fs.OK
}
