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

// gitlinkNode is a 160000-mode tree entry: a submodule reference.
// GitSnapFS does not recurse into the submodule's own repository, so
// this is always an empty directory, per spec.md's mode-mapping table.
// oid is the commit the submodule is pinned to; it is not presently
// exposed, but kept for a future readlink-style submodule surface.
type gitlinkNode struct {
	fs.Inode
	readOnly
	fs         *FS
	ino        inode.Ino
	oid        gitstore.OID
	commitTime time.Time
}

var (
	_ = (fs.NodeGetattrer)((*gitlinkNode)(nil))
	_ = (fs.NodeReaddirer)((*gitlinkNode)(nil))
	_ = (fs.NodeLookuper)((*gitlinkNode)(nil))
)

func (n *gitlinkNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillDirAttr(&out.Attr, n.ino, n.commitTime)
	out.SetTimeout(n.fs.Options.CommitTTL)
	return fs.OK
}

func (n *gitlinkNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	return fs.NewListDirStream(nil), fs.OK
}

func (n *gitlinkNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	return nil, syscall.ENOENT
}
