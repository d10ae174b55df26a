// Package inode implements the Inode Allocator: it derives stable
// 64-bit inode numbers from Git object ids and polices the resulting
// collisions per a strict first-writer-wins binding, persisting the
// binding table as an append-only ledger so restarts (and hot
// upgrades) see the same inode for the same object.
package inode

import (
	"errors"
	"sync"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
)

// Ino is a derived 64-bit inode number.
type Ino uint64

// Tag is the 4-bit object-kind tag packed into an inode's top nibble.
type Tag uint8

const (
	TagBlob      Tag = 0
	TagTree      Tag = 1
	TagCommit    Tag = 2
	TagSymlink   Tag = 3
	// TagSynthetic marks inodes the resolver assigns itself (gitlink
	// placeholders, ref symlinks) rather than deriving from an object
	// id. spec.md's glossary writes this tag's value as "0x7F", which
	// cannot fit the stated 4-bit field (max 0xF); read as a typo for
	// 0xF, the highest nibble value and the one least likely to be
	// reached by Low60()'s masking of a real object id's low bits.
	TagSynthetic Tag = 0xF
)

// ErrClash is returned by Allocate when a second, distinct object
// would need the same inode as one already bound. The caller surfaces
// this as EUCLEAN.
var ErrClash = errors.New("inode: collision with existing binding")

// Binding is the ledger's value type: which object a given inode is
// permanently assigned to.
type Binding struct {
	OID gitstore.OID
	Tag Tag
}

// Ledger is the in-memory collision table described in spec.md §4.B.
// It is safe for concurrent use; Allocate takes the write lock (the
// read-the-map-then-maybe-insert sequence must be atomic with respect
// to other callers), while Bound and IsClash only need a read lock.
type Ledger struct {
	mu       sync.RWMutex
	bindings map[Ino]Binding
	clash    map[Ino]struct{}
	file     *LedgerFile
}

// NewLedger creates an empty in-memory ledger with no backing file.
func NewLedger() *Ledger {
	return &Ledger{
		bindings: make(map[Ino]Binding),
		clash:    make(map[Ino]struct{}),
	}
}

// Attach associates a backing LedgerFile, replaying its records into
// the in-memory table. Call once, before serving any request.
func (l *Ledger) Attach(f *LedgerFile) error {
	records, err := f.Load()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = f
	for _, r := range records {
		if r.Flags&flagClash != 0 {
			l.clash[r.Ino] = struct{}{}
			continue
		}
		// First record wins, as in Allocate: a later record naming a
		// different object for an already-bound inode marks it clashed
		// instead of replacing the earlier binding.
		if existing, bound := l.bindings[r.Ino]; bound {
			if existing.OID.String() != r.OID.String() || existing.Tag != r.Tag {
				l.clash[r.Ino] = struct{}{}
			}
			continue
		}
		l.bindings[r.Ino] = Binding{OID: r.OID, Tag: r.Tag}
	}
	return nil
}

func ino(oid gitstore.OID, tag Tag) Ino {
	return Ino(oid.Low60() | uint64(tag)<<60)
}

// Allocate implements spec.md §4.B's allocate operation: compute the
// candidate inode from (oid, tag); if unbound, bind it and return it;
// if already bound to this exact (oid, tag), return the existing
// inode; if bound to a different object, mark the inode clashed and
// return ErrClash.
func (l *Ledger) Allocate(oid gitstore.OID, tag Tag) (Ino, error) {
	candidate := ino(oid, tag)

	l.mu.Lock()
	defer l.mu.Unlock()

	// A winner's own binding must keep resolving even after the inode
	// has been marked clashed by some other, later object — spec.md §3:
	// "an ino in clash still resolves for the winner." So the bound
	// table is checked for an exact match before the clash table is
	// consulted at all.
	if existing, bound := l.bindings[candidate]; bound {
		if existing.OID.String() == oid.String() && existing.Tag == tag {
			return candidate, nil
		}
		l.clash[candidate] = struct{}{}
		if l.file != nil {
			_ = l.file.Append(record{Ino: candidate, OID: oid, Tag: tag, Flags: flagClash})
		}
		return candidate, ErrClash
	}

	if _, clashed := l.clash[candidate]; clashed {
		return candidate, ErrClash
	}

	l.bindings[candidate] = Binding{OID: oid, Tag: tag}
	if l.file != nil {
		if err := l.file.Append(record{Ino: candidate, OID: oid, Tag: tag}); err != nil {
			// The in-memory grant still stands; a future restart may
			// simply fail to recover this one binding, which is the
			// documented ledger durability boundary, not a collision.
			return candidate, nil
		}
	}
	return candidate, nil
}

// Bound reports the object currently bound to ino, if any.
func (l *Ledger) Bound(i Ino) (Binding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bindings[i]
	return b, ok
}

// IsClash reports whether ino has been marked as a collision.
func (l *Ledger) IsClash(i Ino) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.clash[i]
	return ok
}

// Flush fsyncs the backing ledger file, if any. Called by the
// hot-upgrade coordinator before handing over to the new binary.
func (l *Ledger) Flush() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.file == nil {
		return nil
	}
	return l.file.Flush()
}
