package resolver

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

// rootNode is "/": the four fixed synthetic entries named in spec.md
// §4.C's topology table.
type rootNode struct {
	fs.Inode
	readOnly
	fs *FS
}

var (
	_ = (fs.NodeOnAdder)((*rootNode)(nil))
	_ = (fs.NodeGetattrer)((*rootNode)(nil))
)

func (n *rootNode) OnAdd(ctx context.Context) {
	commits := n.NewPersistentInode(ctx, &commitsNode{fs: n.fs}, fs.StableAttr{
		Mode: modeDir, Ino: uint64(inoCommits),
	})
	n.AddChild("commits", commits, true)

	branches := n.NewPersistentInode(ctx, &refsNode{fs: n.fs, kind: gitstore.RefBranch, ino: inoBranches}, fs.StableAttr{
		Mode: modeDir, Ino: uint64(inoBranches),
	})
	n.AddChild("branches", branches, true)

	tags := n.NewPersistentInode(ctx, &refsNode{fs: n.fs, kind: gitstore.RefTag, ino: inoTags}, fs.StableAttr{
		Mode: modeDir, Ino: uint64(inoTags),
	})
	n.AddChild("tags", tags, true)

	head := n.NewPersistentInode(ctx, &headNode{fs: n.fs}, fs.StableAttr{
		Mode: modeSymlink, Ino: uint64(inoHead),
	})
	n.AddChild("HEAD", head, true)

	n.fs.rootInode = &n.Inode
	n.fs.branchesInode = branches
	n.fs.tagsInode = tags
}

func (n *rootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillDirAttr(&out.Attr, inoRoot, n.fs.StartTime)
	out.SetTimeout(n.fs.Options.AttrTTL)
	return fs.OK
}

// commitsNode is "/commits": readdir is always empty (no commit
// enumeration — spec.md §9's deliberate no-scan simplification);
// lookup resolves a full hex commit id.
type commitsNode struct {
	fs.Inode
	readOnly
	fs *FS
}

var (
	_ = (fs.NodeGetattrer)((*commitsNode)(nil))
	_ = (fs.NodeReaddirer)((*commitsNode)(nil))
	_ = (fs.NodeLookuper)((*commitsNode)(nil))
)

func (n *commitsNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillDirAttr(&out.Attr, inoCommits, n.fs.StartTime)
	out.SetTimeout(n.fs.Options.AttrTTL)
	return fs.OK
}

func (n *commitsNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	return fs.NewListDirStream(nil), fs.OK
}

func (n *commitsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	if !isFullHexOID(name) {
		return nil, syscall.ENOENT
	}
	oid, err := gitstore.ParseOID(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	commit, err := n.fs.Store.FindCommit(oid)
	if err != nil {
		return nil, fsErrno(err)
	}

	ino, err := n.fs.Ledger.Allocate(oid, inode.TagTree)
	if err != nil {
		return nil, fsErrno(err)
	}

	child := &treeNode{
		fs:         n.fs,
		ino:        ino,
		treeOID:    commit.Tree,
		commitTime: commit.Time,
	}
	out.SetEntryTimeout(n.fs.Options.EntryTTL)
	out.SetAttrTimeout(n.fs.Options.CommitTTL)
	fillDirAttr(&out.Attr, ino, commit.Time)

	return n.NewInode(ctx, child, fs.StableAttr{Mode: modeDir, Ino: uint64(ino)}), fs.OK
}

// refsNode is "/branches" or "/tags": readdir enumerates refs in the
// given namespace; lookup resolves one ref to a symlink pointing at
// its commit under /commits.
type refsNode struct {
	fs.Inode
	readOnly
	fs   *FS
	kind gitstore.RefKind
	ino  inode.Ino
}

var (
	_ = (fs.NodeGetattrer)((*refsNode)(nil))
	_ = (fs.NodeReaddirer)((*refsNode)(nil))
	_ = (fs.NodeLookuper)((*refsNode)(nil))
)

func (n *refsNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	fillDirAttr(&out.Attr, n.ino, n.fs.StartTime)
	out.SetTimeout(n.fs.Options.AttrTTL)
	return fs.OK
}

func (n *refsNode) namespace() string {
	if n.kind == gitstore.RefBranch {
		return "branches"
	}
	return "tags"
}

func (n *refsNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	refs, err := n.fs.Store.EnumerateRefs(n.kind)
	if err != nil {
		return nil, fsErrno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(refs))
	for _, r := range refs {
		ino := n.fs.synthetic.get("ref:" + n.namespace() + ":" + r.Name)
		entries = append(entries, fuse.DirEntry{Name: r.Name, Mode: modeSymlink, Ino: uint64(ino)})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *refsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	fullName := "refs/heads/" + name
	if n.kind == gitstore.RefTag {
		fullName = "refs/tags/" + name
	}
	commit, err := n.fs.Store.ResolveRef(fullName)
	if err != nil {
		return nil, fsErrno(err)
	}

	ino := n.fs.synthetic.get("ref:" + n.namespace() + ":" + name)
	target := "../commits/" + commit.OID.String()
	child := &refSymlinkNode{fs: n.fs, ino: ino, target: target}

	out.SetEntryTimeout(n.fs.Options.RefTTL)
	out.SetAttrTimeout(n.fs.Options.RefTTL)
	fillSymlinkAttr(&out.Attr, ino, uint64(len(target)), n.fs.StartTime)

	return n.NewInode(ctx, child, fs.StableAttr{Mode: modeSymlink, Ino: uint64(ino)}), fs.OK
}

// headNode is "/HEAD": a symlink to the resolved HEAD commit.
type headNode struct {
	fs.Inode
	readOnly
	fs *FS
}

var (
	_ = (fs.NodeGetattrer)((*headNode)(nil))
	_ = (fs.NodeReadlinker)((*headNode)(nil))
)

func (n *headNode) headTarget() (string, syscall.Errno) {
	commit, err := n.fs.Store.ResolveRef("HEAD")
	if err != nil {
		return "", fsErrno(err)
	}
	return "../commits/" + commit.OID.String(), fs.OK
}

func (n *headNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return errno
	}
	target, errno := n.headTarget()
	if errno != fs.OK {
		return errno
	}
	fillSymlinkAttr(&out.Attr, inoHead, uint64(len(target)), n.fs.StartTime)
	out.SetTimeout(n.fs.Options.RefTTL)
	return fs.OK
}

func (n *headNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	leave, errno := n.fs.enter()
	defer leave()
	if errno != fs.OK {
		return nil, errno
	}
	target, errno := n.headTarget()
	if errno != fs.OK {
		return nil, errno
	}
	return []byte(target), fs.OK
}
