package resolver

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

const (
	modeDir     = syscall.S_IFDIR | 0o555
	modeFile    = syscall.S_IFREG | 0o444
	modeExec    = syscall.S_IFREG | 0o555
	modeSymlink = syscall.S_IFLNK | 0o777
)

// These fill an embedded fuse.Attr — both fuse.AttrOut and
// fuse.EntryOut embed one, so the same helpers serve Getattr and
// Lookup replies.

func setTimes(attr *fuse.Attr, t time.Time) {
	attr.Atime = uint64(t.Unix())
	attr.Atimensec = uint32(t.Nanosecond())
	attr.Mtime = attr.Atime
	attr.Mtimensec = attr.Atimensec
	attr.Ctime = attr.Atime
	attr.Ctimensec = attr.Atimensec
}

func fillDirAttr(attr *fuse.Attr, ino inode.Ino, t time.Time) {
	attr.Ino = uint64(ino)
	attr.Mode = modeDir
	attr.Nlink = 2
	setTimes(attr, t)
}

func fillFileAttr(attr *fuse.Attr, ino inode.Ino, mode uint32, size uint64, t time.Time) {
	attr.Ino = uint64(ino)
	attr.Mode = mode
	attr.Nlink = 1
	attr.Size = size
	setTimes(attr, t)
}

func fillSymlinkAttr(attr *fuse.Attr, ino inode.Ino, size uint64, t time.Time) {
	attr.Ino = uint64(ino)
	attr.Mode = modeSymlink
	attr.Nlink = 1
	attr.Size = size
	setTimes(attr, t)
}
