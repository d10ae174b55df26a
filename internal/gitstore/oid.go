// Package gitstore is the Object Access Adapter: it wraps a Git
// repository and answers commit/tree/blob/ref lookups without exposing
// go-git's own types to the rest of GitSnapFS.
package gitstore

import (
	"encoding/hex"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// OID is a Git object id, either a 20-byte SHA-1 or a 32-byte SHA-256
// hash. GitSnapFS never interprets the bytes beyond comparing and
// hashing them.
type OID struct {
	b [32]byte
	n int
}

// NewOID wraps a go-git hash. SHA-1 hashes occupy the low 20 bytes;
// go-git renders both hash kinds as hex via Hash.String(), which we
// round-trip through ParseOID rather than assume a byte layout that
// varies across go-git versions (plain [20]byte vs. the newer
// variable-length SHA-256-capable representation).
func NewOID(h plumbing.Hash) OID {
	oid, err := ParseOID(h.String())
	if err != nil {
		// h came from go-git itself; String() always yields valid hex.
		return OID{}
	}
	return oid
}

// ParseOID decodes a hex-encoded object id (40 or 64 hex digits).
func ParseOID(hexStr string) (OID, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return OID{}, fmt.Errorf("parse oid %q: %w", hexStr, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return OID{}, fmt.Errorf("parse oid %q: unexpected length %d", hexStr, len(raw))
	}
	var oid OID
	oid.n = len(raw)
	copy(oid.b[:], raw)
	return oid, nil
}

// Bytes returns the id's raw bytes (20 or 32, depending on hash kind).
func (o OID) Bytes() []byte {
	return append([]byte(nil), o.b[:o.n]...)
}

// String renders the id as lowercase hex.
func (o OID) String() string {
	return hex.EncodeToString(o.b[:o.n])
}

// IsZero reports whether this OID was never assigned a value.
func (o OID) IsZero() bool {
	return o.n == 0
}

// Low60 returns the low 60 bits of the id, the raw material the inode
// allocator packs a 4-bit type tag on top of.
func (o OID) Low60() uint64 {
	var v uint64
	for i := 0; i < 8 && i < o.n; i++ {
		v = v<<8 | uint64(o.b[o.n-1-i])
	}
	return v &^ (uint64(0xF) << 60)
}

// Hash converts back to a go-git hash for calls into the plumbing layer.
func (o OID) Hash() plumbing.Hash {
	return plumbing.NewHash(o.String())
}
