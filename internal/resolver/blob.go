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

// blobNode is a regular file: a Git blob, served read-only.
type blobNode struct {
	fs.Inode
	readOnly
	fs         *FS
	ino        inode.Ino
	oid        gitstore.OID
	mode       uint32
	commitTime time.Time
}

var (
	_ = (fs.NodeGetattrer)((*blobNode)(nil))
	_ = (fs.NodeOpener)((*blobNode)(nil))
	_ = (fs.NodeReader)((*blobNode)(nil))
)

func (n *blobNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	size, err := n.fs.Store.BlobSize(n.oid)
	if err != nil {
		return fsErrno(err)
	}
	fillFileAttr(&out.Attr, n.ino, n.mode, uint64(size), n.commitTime)
	out.SetTimeout(n.fs.Options.CommitTTL)
	return fs.OK
}

// Open rejects anything but read-only access per spec.md §4.C's
// read-only contract, and hands back no per-handle state: fh is the
// inode itself, since blob content is addressed by object id alone.
func (n *blobNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, 0, errno
	}
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (n *blobNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	data, err := n.fs.Store.BlobBytes(n.oid)
	if err != nil {
		return nil, fsErrno(err)
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), fs.OK
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), fs.OK
}
