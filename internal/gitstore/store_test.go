package gitstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newFixture builds a small on-disk repository with one commit
// containing a regular file, a symlink, and a nested directory, and
// returns the opened Store plus the commit's oid.
func newFixture(t *testing.T) (*Store, OID) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested\n"), 0644); err != nil {
		t.Fatalf("write nested: %v", err)
	}
	if err := os.Symlink("README.md", filepath.Join(dir, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add README: %v", err)
	}
	if _, err := wt.Add("sub/nested.txt"); err != nil {
		t.Fatalf("add nested: %v", err)
	}
	if _, err := wt.Add("link"); err != nil {
		t.Fatalf("add link: %v", err)
	}

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := repo.CreateTag("v1.0.0", hash, &git.CreateTagOptions{Tagger: sig, Message: "v1.0.0"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	store, err := Open(dir, 64, 1<<20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, NewOID(hash)
}

func TestStore_FindCommit(t *testing.T) {
	store, oid := newFixture(t)

	c, err := store.FindCommit(oid)
	if err != nil {
		t.Fatalf("FindCommit: %v", err)
	}
	if c.OID.String() != oid.String() {
		t.Fatalf("OID = %s, want %s", c.OID, oid)
	}
	if c.Tree.IsZero() {
		t.Fatal("Tree is zero")
	}
}

func TestStore_FindCommit_Unknown(t *testing.T) {
	store, _ := newFixture(t)
	bogus, err := ParseOID("0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("ParseOID: %v", err)
	}
	if _, err := store.FindCommit(bogus); err == nil {
		t.Fatal("expected error for unknown commit")
	} else if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FindTree(t *testing.T) {
	store, oid := newFixture(t)
	c, err := store.FindCommit(oid)
	if err != nil {
		t.Fatalf("FindCommit: %v", err)
	}
	entries, err := store.FindTree(c.Tree)
	if err != nil {
		t.Fatalf("FindTree: %v", err)
	}

	byName := map[string]TreeEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if byName["README.md"].Kind != KindBlob {
		t.Fatalf("README.md kind = %v, want KindBlob", byName["README.md"].Kind)
	}
	if byName["sub"].Kind != KindTree {
		t.Fatalf("sub kind = %v, want KindTree", byName["sub"].Kind)
	}
	if byName["link"].Kind != KindSymlink {
		t.Fatalf("link kind = %v, want KindSymlink", byName["link"].Kind)
	}
}

func TestStore_BlobBytesAndReader(t *testing.T) {
	store, oid := newFixture(t)
	c, _ := store.FindCommit(oid)
	entries, _ := store.FindTree(c.Tree)

	var readmeOID OID
	for _, e := range entries {
		if e.Name == "README.md" {
			readmeOID = e.OID
		}
	}
	if readmeOID.IsZero() {
		t.Fatal("README.md not found in tree")
	}

	data, err := store.BlobBytes(readmeOID)
	if err != nil {
		t.Fatalf("BlobBytes: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("data = %q, want %q", data, "hello\n")
	}

	// Second call should hit the cache and return identical content.
	data2, err := store.BlobBytes(readmeOID)
	if err != nil {
		t.Fatalf("BlobBytes (cached): %v", err)
	}
	if string(data2) != "hello\n" {
		t.Fatalf("cached data = %q, want %q", data2, "hello\n")
	}
}

func TestStore_ResolveRef(t *testing.T) {
	store, oid := newFixture(t)

	c, err := store.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if c.OID.String() != oid.String() {
		t.Fatalf("HEAD = %s, want %s", c.OID, oid)
	}

	c, err = store.ResolveRef("refs/tags/v1.0.0")
	if err != nil {
		t.Fatalf("ResolveRef(refs/tags/v1.0.0): %v", err)
	}
	if c.OID.String() != oid.String() {
		t.Fatalf("tag peeled to %s, want %s", c.OID, oid)
	}
}

func TestStore_ResolveRef_Unknown(t *testing.T) {
	store, _ := newFixture(t)
	if _, err := store.ResolveRef("refs/heads/does-not-exist"); err == nil {
		t.Fatal("expected error for unknown ref")
	}
}

func TestStore_EnumerateRefs(t *testing.T) {
	store, oid := newFixture(t)

	tags, err := store.EnumerateRefs(RefTag)
	if err != nil {
		t.Fatalf("EnumerateRefs(tag): %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "v1.0.0" || tags[0].OID.String() != oid.String() {
		t.Fatalf("tags = %+v, want one v1.0.0 -> %s", tags, oid)
	}

	branches, err := store.EnumerateRefs(RefBranch)
	if err != nil {
		t.Fatalf("EnumerateRefs(branch): %v", err)
	}
	if len(branches) != 1 {
		t.Fatalf("branches = %+v, want exactly one", branches)
	}
}
