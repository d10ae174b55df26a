// Package refwatch is the Ref-Freshness Notifier: it watches a Git
// repository's refs directories for changes and calls back so the
// mounted filesystem can invalidate its kernel dentry cache instead of
// waiting out the ref TTL. When the watcher cannot be started, callers
// fall back to the existing TTL-based freshness SPEC_FULL.md §4.D
// already guarantees — a missing notifier degrades the filesystem,
// it never breaks it.
package refwatch

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
)

// Kind distinguishes which ref namespace changed.
type Kind int

const (
	KindBranch Kind = iota
	KindTag
	KindHead
)

// Event is delivered to the callback passed to Watch. Name is the
// short ref name for KindBranch/KindTag, and is empty for KindHead.
type Event struct {
	Kind Kind
	Name string
}

// Watcher wraps an fsnotify.Watcher scoped to one repository's refs.
type Watcher struct {
	fsw  *fsnotify.Watcher
	log  *slog.Logger
	done chan struct{}
}

// Watch starts watching gitDir's refs/heads, refs/tags, and the
// packed-refs file's parent directory (git rewrites packed-refs by
// rename, which fsnotify sees as a write on the containing directory,
// not the file itself). A directory that cannot be watched is logged
// and skipped; Watch returns an error only if the watcher could not be
// created or none of the three directories could be watched. Callers
// should log and continue without calling Close on a nil *Watcher.
//
// store is used only to enumerate current ref names when a
// packed-refs rewrite is observed — a single event on that file
// covers every ref at once, so dispatch has to ask the store which
// names exist now in order to invalidate each of them individually,
// per spec.md §4.D's "for every name under the changed namespace"
// requirement.
func Watch(gitDir string, store *gitstore.Store, onEvent func(Event), log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	headsDir := filepath.Join(gitDir, "refs", "heads")
	tagsDir := filepath.Join(gitDir, "refs", "tags")

	var watched int
	var lastErr error
	for _, dir := range []string{headsDir, tagsDir, gitDir} {
		if err := fsw.Add(dir); err != nil {
			log.Warn("refwatch: could not watch directory, falling back to TTL", "dir", dir, "error", err)
			lastErr = err
			continue
		}
		watched++
	}
	if watched == 0 {
		fsw.Close()
		return nil, lastErr
	}

	w := &Watcher{fsw: fsw, log: log, done: make(chan struct{})}
	go w.loop(gitDir, headsDir, tagsDir, store, onEvent)
	return w, nil
}

func (w *Watcher) loop(gitDir, headsDir, tagsDir string, store *gitstore.Store, onEvent func(Event)) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev, gitDir, headsDir, tagsDir, store, onEvent)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("refwatch: watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event, gitDir, headsDir, tagsDir string, store *gitstore.Store, onEvent func(Event)) {
	dir := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)

	switch {
	case dir == headsDir:
		onEvent(Event{Kind: KindBranch, Name: name})
	case dir == tagsDir:
		onEvent(Event{Kind: KindTag, Name: name})
	case dir == gitDir && (name == "HEAD" || name == "packed-refs"):
		onEvent(Event{Kind: KindHead})
		if name == "packed-refs" {
			w.invalidateNamespace(store, gitstore.RefBranch, KindBranch, onEvent)
			w.invalidateNamespace(store, gitstore.RefTag, KindTag, onEvent)
		}
	default:
		if strings.HasPrefix(ev.Name, headsDir) {
			onEvent(Event{Kind: KindBranch, Name: name})
		} else if strings.HasPrefix(ev.Name, tagsDir) {
			onEvent(Event{Kind: KindTag, Name: name})
		}
	}
}

// invalidateNamespace fires one event per ref currently in kind's
// namespace, for the packed-refs-rewrite case where a single fsnotify
// event covers every ref at once.
func (w *Watcher) invalidateNamespace(store *gitstore.Store, kind gitstore.RefKind, eventKind Kind, onEvent func(Event)) {
	if store == nil {
		return
	}
	refs, err := store.EnumerateRefs(kind)
	if err != nil {
		w.log.Warn("refwatch: could not enumerate refs after packed-refs rewrite, entries stay cached until ref-ttl", "error", err)
		return
	}
	for _, r := range refs {
		onEvent(Event{Kind: eventKind, Name: r.Name})
	}
}

// Close stops the watcher and waits for its event loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
