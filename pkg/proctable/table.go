package proctable

import (
	"fmt"
	"strings"
	"sync"
)

// Table maintains the live pid-keyed map of processes against a raw
// snapshot source.
//
// A Table is not safe for concurrent use: refresh calls mutate entries
// in place and readers must only run between them. The owner (typically
// a System facade) is expected to serialize access.
type Table struct {
	source  Source
	procs   map[Pid]*Process
	total   Accumulator[uint64] // system-wide cumulative CPU ticks
	workers int
}

// Option configures a Table.
type Option func(*Table)

// WithWorkers sets the number of goroutines used for the update phase
// of a refresh. Values below 2 keep the update sequential; behavior is
// identical either way, only wall-clock time differs.
func WithWorkers(n int) Option {
	return func(t *Table) { t.workers = n }
}

// New returns an empty table over the given source.
func New(src Source, opts ...Option) *Table {
	t := &Table{
		source: src,
		procs:  make(map[Pid]*Process, 64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refresh runs one refresh cycle for the selected processes and returns
// the number of raw records applied.
//
// removeDead controls eviction: when true, selected entries absent from
// the fresh batch are removed; when false they are kept as-is, stale.
// Entries outside a pid-set selector are never evicted and keep their
// touched state.
//
// If the source cannot produce a batch at all, the table is left
// untouched and the error is returned.
func (t *Table) Refresh(sel Selector, removeDead bool, kind RefreshKind) (int, error) {
	batch, err := t.source.Batch(sel, kind)
	if err != nil {
		return 0, fmt.Errorf("refresh: %w", err)
	}

	// Phase 1: fan the batch out. Existing same-identity entries are
	// mutated in place (disjoint per pid, so parallel-safe); new and
	// replacement entries land in a side buffer, never in the shared
	// map.
	fresh := t.applyBatch(batch, kind)

	// Phase 2: single-threaded merge. Inserting a replacement entry
	// overwrites the stale one, dropping its accumulator history.
	for _, p := range fresh {
		t.procs[p.pid] = p
	}

	t.reconcile(sel, removeDead)

	if kind.CPU() {
		t.computeCPU()
	}
	return len(batch), nil
}

// RefreshOne refreshes a single process and reports whether it still
// exists. A vanished pid is not an error; with removeDead set its stale
// entry is evicted.
func (t *Table) RefreshOne(pid Pid, removeDead bool, kind RefreshKind) bool {
	n, err := t.Refresh(Pids(pid), removeDead, kind)
	return err == nil && n > 0
}

// applyBatch updates existing entries in place and returns the entries
// that need inserting during the merge phase.
func (t *Table) applyBatch(batch []Record, kind RefreshKind) []*Process {
	workers := t.workers
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers < 2 {
		var fresh []*Process
		for i := range batch {
			if p := t.applyOne(&batch[i], kind); p != nil {
				fresh = append(fresh, p)
			}
		}
		return fresh
	}

	// Each record targets a distinct pid, so workers never contend on
	// an entry; the map itself sees only lookups during this phase.
	perWorker := make([][]*Process, workers)
	var wg sync.WaitGroup
	chunk := (len(batch) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(batch) {
			hi = len(batch)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if p := t.applyOne(&batch[i], kind); p != nil {
					perWorker[w] = append(perWorker[w], p)
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()

	var fresh []*Process
	for _, part := range perWorker {
		fresh = append(fresh, part...)
	}
	return fresh
}

// applyOne folds one record into the table. It returns nil when an
// existing entry was updated in place, or the materialized entry when
// the pid is new or was reused by a different logical process.
func (t *Table) applyOne(rec *Record, kind RefreshKind) *Process {
	if cur, ok := t.procs[rec.Pid]; ok && cur.startTime == rec.StartTime {
		cur.apply(rec, t.source, kind)
		return nil
	}
	return newProcess(rec, t.source, kind)
}

// reconcile resets touched flags and, when requested, evicts entries
// the batch did not touch. Pid-set refreshes only ever look at their
// own pids.
func (t *Table) reconcile(sel Selector, removeDead bool) {
	if sel.IsAll() {
		if removeDead {
			for pid, p := range t.procs {
				if !p.switchTouched() {
					delete(t.procs, pid)
				}
			}
			return
		}
		for _, p := range t.procs {
			p.switchTouched()
		}
		return
	}
	// A pid listed twice must only consume its touched flag once, or
	// the second pass would mistake a live entry for a dead one.
	seen := make(map[Pid]struct{}, len(sel.List()))
	for _, pid := range sel.List() {
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		p, ok := t.procs[pid]
		if !ok {
			continue
		}
		if !p.switchTouched() && removeDead {
			delete(t.procs, pid)
		}
	}
}

// computeCPU normalizes per-entry work deltas into usage percentages.
// Missing system-level CPU information degrades to "no usage update"
// rather than failing the refresh.
func (t *Table) computeCPU() {
	ticks, cores, err := t.source.CPUTotals()
	if err != nil || cores == 0 {
		return
	}
	t.total.Update(ticks)
	delta := t.total.Delta()
	if delta == 0 {
		// A zero system delta over the window would divide usage into
		// NaN; a nominal total of 1 reports near-0 usage instead.
		delta = 1
	}
	perCore := float32(delta) / float32(cores)
	maxUsage := float32(cores) * 100
	for _, p := range t.procs {
		p.computeCPUUsage(perCore, maxUsage)
	}
}

// Get returns the entry for pid, false if the table holds none.
func (t *Table) Get(pid Pid) (*Process, bool) {
	p, ok := t.procs[pid]
	return p, ok
}

// Len returns the number of tracked processes.
func (t *Table) Len() int { return len(t.procs) }

// Pids returns the tracked pids in unspecified order.
func (t *Table) Pids() []Pid {
	pids := make([]Pid, 0, len(t.procs))
	for pid := range t.procs {
		pids = append(pids, pid)
	}
	return pids
}

// Range calls fn for every tracked process until fn returns false. The
// pointers are only valid until the next refresh.
func (t *Table) Range(fn func(*Process) bool) {
	for _, p := range t.procs {
		if !fn(p) {
			return
		}
	}
}

// ByName returns the processes whose name matches exactly.
func (t *Table) ByName(name string) []*Process {
	var out []*Process
	for _, p := range t.procs {
		if p.name == name {
			out = append(out, p)
		}
	}
	return out
}

// ByNameContains returns the processes whose name contains the substring.
func (t *Table) ByNameContains(sub string) []*Process {
	var out []*Process
	for _, p := range t.procs {
		if strings.Contains(p.name, sub) {
			out = append(out, p)
		}
	}
	return out
}
