package gitstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// EntryKind classifies a tree entry the way the inode allocator and
// the path resolver need to see it — collapsing go-git's finer-grained
// file modes down to the five kinds GitSnapFS's topology distinguishes.
type EntryKind uint8

const (
	KindTree EntryKind = iota
	KindBlob
	KindBlobExecutable
	KindSymlink
	KindGitlink
)

// TreeEntry is one child of a tree, translated out of go-git's own type.
type TreeEntry struct {
	Name string
	Kind EntryKind
	OID  OID
}

// Commit is the subset of commit metadata the resolver needs.
type Commit struct {
	OID  OID
	Tree OID
	Time time.Time
}

// RefKind distinguishes the two enumerable ref namespaces.
type RefKind uint8

const (
	RefBranch RefKind = iota
	RefTag
)

// Ref is one entry returned by EnumerateRefs.
type Ref struct {
	Name string // short name, e.g. "main" or "v1.0.0"
	OID  OID    // the commit it (after peeling) points at
}

// Store is the Object Access Adapter: it wraps a single Git repository
// and answers commit/tree/blob/ref lookups, translating go-git's
// object graph into GitSnapFS's own small vocabulary and mapping every
// failure into ErrNotFound or ErrIO.
type Store struct {
	repo   *git.Repository
	gitDir string

	cache *cache
}

// Open opens the Git repository rooted at path, which may be either a
// working tree (its .git directory is auto-detected) or a bare
// repository.
func Open(path string, treeCacheSize, blobCacheBytes int) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %q: %w", path, err)
	}
	wt, err := repo.Worktree()
	gitDir := path
	if err == nil {
		gitDir = filepath.Join(wt.Filesystem.Root(), ".git")
	}
	return &Store{
		repo:   repo,
		gitDir: gitDir,
		cache:  newCache(treeCacheSize, blobCacheBytes),
	}, nil
}

// GitDir returns the repository's .git directory, used by the
// ref-freshness notifier to know what to watch.
func (s *Store) GitDir() string {
	return s.gitDir
}

// PackedRefsPath returns the path to packed-refs, which git rewrites
// in place via rename rather than in-place write.
func (s *Store) PackedRefsPath() string {
	return filepath.Join(s.gitDir, "packed-refs")
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, plumbing.ErrObjectNotFound) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) ||
		os.IsNotExist(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// FindCommit resolves a full commit object id to its metadata.
func (s *Store) FindCommit(oid OID) (Commit, error) {
	c, err := s.repo.CommitObject(oid.Hash())
	if err != nil {
		return Commit{}, translate(err)
	}
	return Commit{OID: oid, Tree: NewOID(c.TreeHash), Time: c.Committer.When}, nil
}

// ResolveCommitish resolves a user-supplied string (a full or
// abbreviated object id, a ref name, or "HEAD") to a commit, peeling
// through annotated tags. /commits/<name> lookups do not use it: they
// accept only full hex ids and call FindCommit.
func (s *Store) ResolveCommitish(rev string) (Commit, error) {
	hash, err := s.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return Commit{}, translate(err)
	}
	return s.resolveCommitAt(*hash)
}

// resolveCommitAt resolves a hash that may name a commit directly or
// an annotated tag pointing (possibly transitively) at one.
func (s *Store) resolveCommitAt(hash plumbing.Hash) (Commit, error) {
	if c, err := s.repo.CommitObject(hash); err == nil {
		return Commit{OID: NewOID(hash), Tree: NewOID(c.TreeHash), Time: c.Committer.When}, nil
	}
	tag, err := s.repo.TagObject(hash)
	if err != nil {
		return Commit{}, translate(err)
	}
	commit, err := tag.Commit()
	if err != nil {
		// Tag points at a tree or blob, not (transitively) a commit.
		return Commit{}, ErrNotFound
	}
	return Commit{OID: NewOID(commit.Hash), Tree: NewOID(commit.TreeHash), Time: commit.Committer.When}, nil
}

// FindTree resolves a tree object id to its entries, in the tree's own
// on-disk canonical order.
func (s *Store) FindTree(oid OID) ([]TreeEntry, error) {
	if entries, ok := s.cache.getTree(oid.String()); ok {
		return entries, nil
	}
	t, err := s.repo.TreeObject(oid.Hash())
	if err != nil {
		return nil, translate(err)
	}
	entries := make([]TreeEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, TreeEntry{
			Name: e.Name,
			Kind: kindForMode(e.Mode),
			OID:  NewOID(e.Hash),
		})
	}
	s.cache.putTree(oid.String(), entries)
	return entries, nil
}

func kindForMode(mode filemode.FileMode) EntryKind {
	switch mode {
	case filemode.Dir:
		return KindTree
	case filemode.Executable:
		return KindBlobExecutable
	case filemode.Symlink:
		return KindSymlink
	case filemode.Submodule:
		return KindGitlink
	default:
		return KindBlob
	}
}

// BlobReader opens a blob for streamed reading. The caller must close
// the returned reader.
func (s *Store) BlobReader(oid OID) (io.ReadCloser, error) {
	b, err := s.repo.BlobObject(oid.Hash())
	if err != nil {
		return nil, translate(err)
	}
	r, err := b.Reader()
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// BlobBytes reads a small blob fully, consulting and populating the
// small-blob cache.
func (s *Store) BlobBytes(oid OID) ([]byte, error) {
	if data, ok := s.cache.getBlob(oid.String()); ok {
		return data, nil
	}
	r, err := s.BlobReader(oid)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.cache.putBlob(oid.String(), data)
	return data, nil
}

// BlobSize returns a blob's size without reading its content.
func (s *Store) BlobSize(oid OID) (int64, error) {
	b, err := s.repo.BlobObject(oid.Hash())
	if err != nil {
		return 0, translate(err)
	}
	return b.Size, nil
}

// ResolveRef resolves a fully-qualified ref name ("HEAD",
// "refs/heads/main", "refs/tags/v1") to the commit it names, peeling
// through symbolic refs and annotated tags.
func (s *Store) ResolveRef(name string) (Commit, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return Commit{}, translate(err)
	}
	return s.resolveCommitAt(ref.Hash())
}

// EnumerateRefs lists every ref in the given namespace, sorted
// lexicographically by short name so the synthetic /branches and /tags
// directories have a stable, scan-free readdir order.
func (s *Store) EnumerateRefs(kind RefKind) ([]Ref, error) {
	var iter interface {
		ForEach(func(*plumbing.Reference) error) error
	}
	var err error
	switch kind {
	case RefBranch:
		iter, err = s.repo.Branches()
	case RefTag:
		iter, err = s.repo.Tags()
	default:
		return nil, fmt.Errorf("gitstore: unknown ref kind %d", kind)
	}
	if err != nil {
		return nil, translate(err)
	}

	var refs []Ref
	err = iter.ForEach(func(r *plumbing.Reference) error {
		commit, cerr := s.resolveCommitAt(r.Hash())
		if cerr != nil {
			if errors.Is(cerr, ErrNotFound) {
				// Tag points at a tree/blob: not representable under
				// /commits, so it is omitted from the listing rather
				// than surfaced as a broken entry.
				return nil
			}
			return cerr
		}
		refs = append(refs, Ref{Name: r.Name().Short(), OID: commit.OID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
