package resolver

import (
	"testing"
	"time"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

func TestTreeNode_ChildIno_StableAcrossCalls(t *testing.T) {
	ledger := inode.NewLedger()
	rfs := New(nil, ledger, DefaultOptions())

	treeOID, _ := gitstore.ParseOID("0123456789abcdef0123456789abcdef01234567")
	n := &treeNode{fs: rfs, treeOID: treeOID, commitTime: time.Unix(0, 0)}

	entry := gitstore.TreeEntry{Name: "README.md", Kind: gitstore.KindBlob, OID: mustGitstoreOID(t, "111111111111111111111111111111111111111a")}

	first, errno := n.childIno(entry)
	if errno != 0 {
		t.Fatalf("childIno: errno %v", errno)
	}
	second, errno := n.childIno(entry)
	if errno != 0 {
		t.Fatalf("childIno (repeat): errno %v", errno)
	}
	if first != second {
		t.Fatalf("childIno not stable: %d != %d", first, second)
	}
}

func TestTreeNode_ChildIno_GitlinkUsesSyntheticTable(t *testing.T) {
	ledger := inode.NewLedger()
	rfs := New(nil, ledger, DefaultOptions())

	treeOID, _ := gitstore.ParseOID("0123456789abcdef0123456789abcdef01234567")
	n := &treeNode{fs: rfs, treeOID: treeOID, commitTime: time.Unix(0, 0)}

	entry := gitstore.TreeEntry{Name: "vendor/lib", Kind: gitstore.KindGitlink, OID: mustGitstoreOID(t, "222222222222222222222222222222222222222a")}

	ino, errno := n.childIno(entry)
	if errno != 0 {
		t.Fatalf("childIno: errno %v", errno)
	}
	if ino < syntheticBase {
		t.Fatalf("gitlink ino %d below syntheticBase %d", ino, syntheticBase)
	}

	// Same (treeOID, name) must always resolve to the same synthetic
	// inode, since the gitlink has no object id of its own to derive
	// stability from.
	ino2, _ := n.childIno(entry)
	if ino != ino2 {
		t.Fatalf("gitlink ino not stable: %d != %d", ino, ino2)
	}
}

func mustGitstoreOID(t *testing.T, hex string) gitstore.OID {
	t.Helper()
	oid, err := gitstore.ParseOID(hex)
	if err != nil {
		t.Fatalf("ParseOID(%q): %v", hex, err)
	}
	return oid
}
