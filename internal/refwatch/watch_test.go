package refwatch

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRepoFixture builds a small on-disk repository with one commit, one
// branch (the default branch created by the commit), and one tag, and
// returns its opened gitstore.Store and git directory.
func newRepoFixture(t *testing.T) (*gitstore.Store, string) {
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
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add README: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := repo.CreateTag("v1.0.0", hash, &git.CreateTagOptions{Tagger: sig, Message: "v1.0.0"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	store, err := gitstore.Open(dir, 64, 1<<20)
	if err != nil {
		t.Fatalf("gitstore.Open: %v", err)
	}
	return store, store.GitDir()
}

func TestWatch_BranchChange(t *testing.T) {
	gitDir := t.TempDir()
	headsDir := filepath.Join(gitDir, "refs", "heads")
	if err := os.MkdirAll(headsDir, 0755); err != nil {
		t.Fatalf("MkdirAll heads: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(gitDir, "refs", "tags"), 0755); err != nil {
		t.Fatalf("MkdirAll tags: %v", err)
	}

	events := make(chan Event, 16)
	w, err := Watch(gitDir, nil, func(e Event) { events <- e }, discardLogger())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	mainRef := filepath.Join(headsDir, "main")
	if err := os.WriteFile(mainRef, []byte("abc123\n"), 0644); err != nil {
		t.Fatalf("write ref: %v", err)
	}

	select {
	case e := <-events:
		if e.Kind != KindBranch || e.Name != "main" {
			t.Fatalf("got %+v, want KindBranch/main", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for branch event")
	}
}

func TestWatch_PackedRefsRewrite(t *testing.T) {
	store, gitDir := newRepoFixture(t)

	events := make(chan Event, 16)
	w, err := Watch(gitDir, store, func(e Event) { events <- e }, discardLogger())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// git rewrites packed-refs via a temp file + rename, which
	// fsnotify reports as a create/rename on the containing directory.
	tmp := filepath.Join(gitDir, "packed-refs.tmp")
	if err := os.WriteFile(tmp, []byte("# pack-refs with: peeled fully-peeled sorted \n"), 0644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(gitDir, "packed-refs")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	gotHead, gotBranch, gotTag := false, false, false
	deadline := time.After(2 * time.Second)
	for !(gotHead && gotBranch && gotTag) {
		select {
		case e := <-events:
			switch e.Kind {
			case KindHead:
				gotHead = true
			case KindBranch:
				if e.Name == "" {
					t.Fatalf("branch event missing name after packed-refs rewrite")
				}
				gotBranch = true
			case KindTag:
				if e.Name != "v1.0.0" {
					t.Fatalf("tag event name = %q, want v1.0.0", e.Name)
				}
				gotTag = true
			}
		case <-deadline:
			t.Fatalf("timed out: head=%v branch=%v tag=%v", gotHead, gotBranch, gotTag)
		}
	}
}
