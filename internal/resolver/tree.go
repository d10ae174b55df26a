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

// treeNode is a directory under /commits/<id>: either the commit root
// itself or a nested tree. Every descendant reports the owning
// commit's committer time, per original_source/src/fs.rs's CommitMeta
// propagation — a tree has no timestamp of its own in Git.
type treeNode struct {
	fs.Inode
	readOnly
	fs         *FS
	ino        inode.Ino
	treeOID    gitstore.OID
	commitTime time.Time
}

var (
	_ = (fs.NodeGetattrer)((*treeNode)(nil))
	_ = (fs.NodeReaddirer)((*treeNode)(nil))
	_ = (fs.NodeLookuper)((*treeNode)(nil))
)

func (n *treeNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillDirAttr(&out.Attr, n.ino, n.commitTime)
	out.SetTimeout(n.fs.Options.CommitTTL)
	return fs.OK
}

func (n *treeNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	entries, err := n.fs.Store.FindTree(n.treeOID)
	if err != nil {
		return nil, fsErrno(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		var mode uint32
		switch e.Kind {
		case gitstore.KindTree:
			mode = modeDir
		case gitstore.KindBlob:
			mode = modeFile
		case gitstore.KindBlobExecutable:
			mode = modeExec
		case gitstore.KindSymlink:
			mode = modeSymlink
		case gitstore.KindGitlink:
			mode = modeDir
		}
		ino, errno := n.childIno(e)
		if errno != fs.OK {
			continue
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode, Ino: uint64(ino)})
	}
	return fs.NewListDirStream(out), fs.OK
}

// childIno computes the inode a tree entry should resolve to without
// constructing its child node, so Readdir can report it cheaply.
func (n *treeNode) childIno(e gitstore.TreeEntry) (inode.Ino, syscall.Errno) {
	switch e.Kind {
	case gitstore.KindGitlink:
		return n.fs.synthetic.get("gitlink:" + n.treeOID.String() + ":" + e.Name), fs.OK
	case gitstore.KindTree:
		ino, err := n.fs.Ledger.Allocate(e.OID, inode.TagTree)
		return ino, fsErrno(err)
	case gitstore.KindSymlink:
		ino, err := n.fs.Ledger.Allocate(e.OID, inode.TagSymlink)
		return ino, fsErrno(err)
	default:
		ino, err := n.fs.Ledger.Allocate(e.OID, inode.TagBlob)
		return ino, fsErrno(err)
	}
}

func (n *treeNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	entries, err := n.fs.Store.FindTree(n.treeOID)
	if err != nil {
		return nil, fsErrno(err)
	}
	var found gitstore.TreeEntry
	ok := false
	for _, e := range entries {
		if e.Name == name {
			found, ok = e, true
			break
		}
	}
	if !ok {
		return nil, syscall.ENOENT
	}

	out.SetEntryTimeout(n.fs.Options.EntryTTL)
	out.SetAttrTimeout(n.fs.Options.CommitTTL)

	switch found.Kind {
	case gitstore.KindTree:
		ino, err := n.fs.Ledger.Allocate(found.OID, inode.TagTree)
		if err != nil {
			return nil, fsErrno(err)
		}
		child := &treeNode{fs: n.fs, ino: ino, treeOID: found.OID, commitTime: n.commitTime}
		fillDirAttr(&out.Attr, ino, n.commitTime)
		return n.NewInode(ctx, child, fs.StableAttr{Mode: modeDir, Ino: uint64(ino)}), fs.OK

	case gitstore.KindSymlink:
		ino, err := n.fs.Ledger.Allocate(found.OID, inode.TagSymlink)
		if err != nil {
			return nil, fsErrno(err)
		}
		child := &gitSymlinkNode{fs: n.fs, ino: ino, oid: found.OID, commitTime: n.commitTime}
		size, serr := n.fs.Store.BlobSize(found.OID)
		if serr != nil {
			return nil, fsErrno(serr)
		}
		fillSymlinkAttr(&out.Attr, ino, uint64(size), n.commitTime)
		return n.NewInode(ctx, child, fs.StableAttr{Mode: modeSymlink, Ino: uint64(ino)}), fs.OK

	case gitstore.KindGitlink:
		ino := n.fs.synthetic.get("gitlink:" + n.treeOID.String() + ":" + name)
		child := &gitlinkNode{fs: n.fs, ino: ino, oid: found.OID, commitTime: n.commitTime}
		fillDirAttr(&out.Attr, ino, n.commitTime)
		return n.NewInode(ctx, child, fs.StableAttr{Mode: modeDir, Ino: uint64(ino)}), fs.OK

	default: // KindBlob, KindBlobExecutable
		tag := inode.TagBlob
		ino, err := n.fs.Ledger.Allocate(found.OID, tag)
		if err != nil {
			return nil, fsErrno(err)
		}
		mode := uint32(modeFile)
		if found.Kind == gitstore.KindBlobExecutable {
			mode = modeExec
		}
		size, serr := n.fs.Store.BlobSize(found.OID)
		if serr != nil {
			return nil, fsErrno(serr)
		}
		child := &blobNode{fs: n.fs, ino: ino, oid: found.OID, mode: mode, commitTime: n.commitTime}
		fillFileAttr(&out.Attr, ino, mode, uint64(size), n.commitTime)
		return n.NewInode(ctx, child, fs.StableAttr{Mode: mode, Ino: uint64(ino)}), fs.OK
	}
}
