package resolver

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/gitsnapfs/gitsnapfs/internal/gitstore"
	"github.com/gitsnapfs/gitsnapfs/internal/inode"
)

func TestFsErrno(t *testing.T) {
	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{gitstore.ErrNotFound, syscall.ENOENT},
		{fmt.Errorf("wrapped: %w", gitstore.ErrNotFound), syscall.ENOENT},
		{inode.ErrClash, syscall.EUCLEAN},
		{errStale, syscall.ESTALE},
		{gitstore.ErrIO, syscall.EIO},
		{fmt.Errorf("some other failure"), syscall.EIO},
	}
	for _, c := range cases {
		if got := fsErrno(c.err); got != c.want {
			t.Errorf("fsErrno(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
