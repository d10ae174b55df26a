package upgrade

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AdoptFromEnv reports whether this process was started as the target
// of a hot-upgrade handover, and if so, the inherited FUSE channel fd
// and ledger state path spec.md §4.E's step 5 describes. The caller
// is responsible for actually resuming dispatch on fd — see the
// package doc comment and DESIGN.md for the documented limit of what
// go-fuse's public API exposes for that.
func AdoptFromEnv() (fd int, statePath string, ok bool) {
	raw, present := os.LookupEnv(FUSEFDEnv)
	if !present {
		return 0, "", false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "", false
	}
	return n, os.Getenv(StateEnv), true
}

// DiscoverFuseFD finds the open file descriptor backing the current
// process's FUSE channel by scanning /proc/self/fd for an entry whose
// target is /dev/fuse. go-fuse's public fs.Mount API does not hand the
// caller this fd directly once the mount is established, so this is
// the coordinator's only way to learn it for the CLOEXEC-clearing and
// handover steps of spec.md §4.E.
func DiscoverFuseFD() (int, error) {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return 0, fmt.Errorf("read /proc/self/fd: %w", err)
	}
	for _, e := range entries {
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err != nil {
			continue
		}
		if target == "/dev/fuse" {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no /dev/fuse descriptor found among open file descriptors")
}
