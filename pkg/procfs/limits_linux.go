//go:build linux

package procfs

import "golang.org/x/sys/unix"

// defaultMaxHandles derives the stat-handle ceiling from RLIMIT_NOFILE:
// the soft limit is raised to the hard one (best effort) and half of it
// is kept for this library, leaving the rest to the hosting application.
func defaultMaxHandles() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		// Most Linux systems default to 1024.
		return 1024 / 2
	}
	cur := lim.Cur
	lim.Cur = lim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err == nil {
		cur = lim.Cur
	}
	return int(cur / 2)
}
