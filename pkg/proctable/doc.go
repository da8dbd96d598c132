// Package proctable maintains a live, incrementally refreshed map of OS
// processes with delta-based CPU and disk I/O accounting. It is the
// portable core of the library: everything OS-specific sits behind the
// Source interface (see pkg/procfs for the Linux implementation).
//
// # Refresh protocol
//
// A Table is synchronized against a Source one refresh cycle at a time:
//
//	tbl := proctable.New(src)
//	n, err := tbl.Refresh(proctable.All(), true, proctable.RefreshEverything())
//
// Each cycle fetches a batch of raw records and reconciles it against
// the existing entries:
//
//   - a pid the table has never seen materializes a new entry;
//   - a pid with a matching start time is updated in place, keeping its
//     counter history so rates can be derived;
//   - a pid whose start time changed belongs to a *different* logical
//     process (pid reuse) and replaces the old entry wholesale, so no
//     stale CPU or I/O history leaks across process lifetimes;
//   - entries the batch did not touch are evicted when the caller asked
//     for dead-process removal, or kept stale otherwise.
//
// Selectors scope a cycle to all processes, an explicit pid set
// (Pids(...)), or a single pid (RefreshOne). A pid-set refresh never
// disturbs entries outside its set, not even their liveness marker.
//
// # Rates
//
// All activity figures are derived from pairs of cumulative counter
// samples (Accumulator). The first observation of a process therefore
// reports 0 for CPU usage and I/O deltas; meaningful rates appear from
// the second cycle on. CPU usage is normalized against the system-wide
// tick delta and clamped to [0, cores*100].
//
// # What gets refreshed
//
// RefreshKind picks the fields a cycle touches. Cheap gauges (memory,
// CPU ticks, disk counters) are plain booleans; expensive metadata
// (command line, exe path, cwd, root, environment, user ids) uses the
// tri-state UpdateKind so callers can fetch them once and never again
// (OnlyIfNotSet), every cycle (Always), or not at all (Never).
//
// # Failure behavior
//
// Per-entity failures never abort a cycle: a process that exits mid-scan
// simply yields no record, and a metadata fetch that fails leaves the
// previous values in place. Only a source that cannot produce a batch at
// all returns an error, with the table untouched.
//
// # Concurrency
//
// Refresh is synchronous and may optionally fan the update phase out
// across goroutines (WithWorkers); results are identical either way
// because each raw record targets a distinct pid. The Table itself is
// not safe for concurrent use; callers serialize refreshes and reads.
package proctable
