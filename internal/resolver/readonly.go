package resolver

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// readOnly is embedded by every node type so that every mutating FUSE
// request kind replies EROFS regardless of which node it targets, and
// xattr reads reply ENOTSUP — spec.md §4.C's read-only law and §8
// invariant 3. Embedding rather than leaving these interfaces
// unimplemented matters here: an unimplemented NodeXxxer makes go-fuse
// fall back to ENOSYS, not the EROFS spec.md requires.
type readOnly struct{}

var (
	_ = (fs.NodeMkdirer)((*readOnly)(nil))
	_ = (fs.NodeRmdirer)((*readOnly)(nil))
	_ = (fs.NodeUnlinker)((*readOnly)(nil))
	_ = (fs.NodeRenamer)((*readOnly)(nil))
	_ = (fs.NodeLinker)((*readOnly)(nil))
	_ = (fs.NodeSymlinker)((*readOnly)(nil))
	_ = (fs.NodeCreater)((*readOnly)(nil))
	_ = (fs.NodeSetattrer)((*readOnly)(nil))
	_ = (fs.NodeGetxattrer)((*readOnly)(nil))
	_ = (fs.NodeListxattrer)((*readOnly)(nil))
	_ = (fs.NodeSetxattrer)((*readOnly)(nil))
	_ = (fs.NodeFsyncer)((*readOnly)(nil))
	_ = (fs.NodeFlusher)((*readOnly)(nil))
	_ = (fs.NodeAllocater)((*readOnly)(nil))
	_ = (fs.NodeWriter)((*readOnly)(nil))
)

func (readOnly) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (readOnly) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (readOnly) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (readOnly) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (readOnly) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	return 0, syscall.ENOTSUP
}

func (readOnly) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return 0, syscall.ENOTSUP
}

func (readOnly) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Fsync(ctx context.Context, fh fs.FileHandle, flags uint32) syscall.Errno {
	return syscall.EROFS
}

// Flush succeeds: it runs on every close(2), and since no write is ever
// accepted, no handle carries dirty data to refuse.
func (readOnly) Flush(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	return fs.OK
}

func (readOnly) Allocate(ctx context.Context, fh fs.FileHandle, off uint64, size uint64, mode uint32) syscall.Errno {
	return syscall.EROFS
}

func (readOnly) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, syscall.EROFS
}
