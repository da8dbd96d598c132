// Package procfs implements a proctable.Source backed by the Linux
// /proc filesystem.
//
// Each refresh cycle reads /proc/<pid>/stat for scheduler state, CPU
// ticks and memory, /proc/<pid>/io for disk counters and, when task
// refresh is requested, the per-thread stat files under
// /proc/<pid>/task. Process metadata (cmdline, environ, exe, cwd,
// root, uid/gid) is read on demand through Metadata.
//
// stat files of live processes are kept open between cycles to avoid
// reopening them on every refresh. The number of kept handles is
// bounded: by default RLIMIT_NOFILE's soft limit is raised to the hard
// limit and half of it is reserved for the cache; WithMaxHandles
// overrides the ceiling. A handle whose re-read fails (the process
// died, its pid possibly reused) is closed and reopened fresh.
//
// WithRoot points the source at an alternate proc mount, which is how
// the tests run against a synthetic tree.
package procfs
