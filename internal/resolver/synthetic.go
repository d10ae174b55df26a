package resolver

import (
	"sync"

	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

// syntheticBase is where allocated synthetic inodes (gitlinks, ref
// symlinks) start counting from: the TagSynthetic nibble in the top
// four bits keeps them disjoint from every ledger-derived inode, and
// the 1<<32 offset keeps them clear of the five fixed topology inodes
// (1–5), per SPEC_FULL.md §3.2.
const syntheticBase inode.Ino = inode.Ino(inode.TagSynthetic)<<60 | 1<<32

// syntheticTable assigns stable inodes to objects that have no Git
// object id of their own — gitlink placeholder directories and ref
// symlinks — keyed by a caller-chosen identity string (e.g. the
// parent tree's OID plus the entry name, or the ref namespace plus
// name). Entries are never removed: the table lives for the process
// lifetime, matching the ledger's own append-only, never-shrinks
// discipline.
type syntheticTable struct {
	mu   sync.Mutex
	next inode.Ino
	ids  map[string]inode.Ino
}

func newSyntheticTable() *syntheticTable {
	return &syntheticTable{next: syntheticBase, ids: make(map[string]inode.Ino)}
}

func (t *syntheticTable) get(key string) inode.Ino {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ino, ok := t.ids[key]; ok {
		return ino
	}
	ino := t.next
	t.next++
	t.ids[key] = ino
	return ino
}
