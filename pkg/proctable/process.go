package proctable

import (
	"github.com/ja7ad/proctable/pkg/types"
)

// DiskUsage is the disk I/O picture of one process: activity during the
// last refresh window plus lifetime totals.
type DiskUsage struct {
	ReadBytes         types.Bytes
	WrittenBytes      types.Bytes
	TotalReadBytes    types.Bytes
	TotalWrittenBytes types.Bytes
}

// Process is one entry of the table: the live, incrementally refreshed
// view of a single OS process (or, in a task sub-table, one thread).
//
// A Process is owned by its table. Pointers handed out by queries stay
// valid until the next refresh call and must not be retained across it.
type Process struct {
	pid       Pid
	parent    Pid
	hasParent bool
	startTime uint64
	runTime   uint64

	name    string
	cmd     []string
	exe     string
	cwd     string
	root    string
	environ []string
	userID  uint32
	groupID uint32
	hasUser bool

	memory        uint64
	virtualMemory uint64
	status        ProcessStatus

	cpu      Accumulator[uint64]
	cpuUsage float32
	read     Accumulator[uint64]
	written  Accumulator[uint64]

	// touched is true once the entry was (re)written during the current
	// refresh cycle; reconciliation resets it and uses it to detect
	// vanished processes.
	touched bool

	tasks map[Pid]*Process
}

// Pid returns the process identifier.
func (p *Process) Pid() Pid { return p.pid }

// Parent returns the parent pid, false if the process has none (or it
// is not known).
func (p *Process) Parent() (Pid, bool) { return p.parent, p.hasParent }

// StartTime returns the process start in seconds since the epoch.
func (p *Process) StartTime() uint64 { return p.startTime }

// RunTime returns how long the process has been alive, in seconds.
func (p *Process) RunTime() uint64 { return p.runTime }

// Name returns the short process name.
func (p *Process) Name() string { return p.name }

// Cmd returns the command line, empty until fetched.
func (p *Process) Cmd() []string { return p.cmd }

// Exe returns the executable path, empty until fetched.
func (p *Process) Exe() string { return p.exe }

// Cwd returns the working directory, empty until fetched.
func (p *Process) Cwd() string { return p.cwd }

// Root returns the root directory, empty until fetched.
func (p *Process) Root() string { return p.root }

// Environ returns the environment, empty until fetched.
func (p *Process) Environ() []string { return p.environ }

// User returns the owning user and group ids, false until fetched.
func (p *Process) User() (uid, gid uint32, ok bool) {
	return p.userID, p.groupID, p.hasUser
}

// Memory returns the resident memory gauge.
func (p *Process) Memory() types.Bytes { return types.Bytes(p.memory) }

// VirtualMemory returns the virtual memory gauge.
func (p *Process) VirtualMemory() types.Bytes { return types.Bytes(p.virtualMemory) }

// Status returns the platform-mapped run state.
func (p *Process) Status() ProcessStatus { return p.status }

// CPUUsage returns the usage percentage over the last refresh window,
// in [0, cores*100]. It is 0 until a process has been observed twice.
func (p *Process) CPUUsage() float32 { return p.cpuUsage }

// DiskUsage returns per-window deltas and lifetime totals of disk I/O.
func (p *Process) DiskUsage() DiskUsage {
	return DiskUsage{
		ReadBytes:         types.Bytes(p.read.Delta()),
		WrittenBytes:      types.Bytes(p.written.Delta()),
		TotalReadBytes:    types.Bytes(p.read.Current()),
		TotalWrittenBytes: types.Bytes(p.written.Current()),
	}
}

// Tasks returns the task (thread) sub-table, nil on platforms without
// task accounting. The map is owned by the entry; treat it as read-only.
func (p *Process) Tasks() map[Pid]*Process { return p.tasks }

// newProcess materializes a fresh entry from a raw record. Accumulators
// are seeded with a single sample, so no rate is reported before the
// second observation.
func newProcess(rec *Record, src Source, kind RefreshKind) *Process {
	p := &Process{
		pid:       rec.Pid,
		startTime: rec.StartTime,
		name:      rec.Name,
		touched:   true,
	}
	p.apply(rec, src, kind)
	return p
}

// apply folds a fresh raw record into the entry. The caller guarantees
// the record has the same identity (pid and start time) as the entry.
func (p *Process) apply(rec *Record, src Source, kind RefreshKind) {
	p.touched = true
	p.status = rec.Status
	p.runTime = rec.RunTime
	if rec.HasParent {
		p.parent = rec.Parent
		p.hasParent = true
	}

	if kind.CPU() && rec.HasCPU {
		p.cpu.Update(rec.CPUTicks)
	}
	if kind.Memory() && rec.HasMemory {
		p.memory = rec.Memory
		p.virtualMemory = rec.VirtualMemory
	}
	if kind.DiskUsage() && rec.HasIO {
		p.read.Update(rec.ReadBytes)
		p.written.Update(rec.WrittenBytes)
	}

	if want := kind.metaFields(p); want != 0 {
		// A failed metadata fetch is a transient per-entity condition:
		// previously known values stay in place.
		if md, err := src.Metadata(p.pid, want); err == nil {
			p.applyMetadata(&md)
		}
	}

	if kind.Tasks() && rec.Tasks != nil {
		p.reconcileTasks(rec.Tasks, src, kind)
	}
}

func (p *Process) applyMetadata(md *Metadata) {
	if md.Got&MetaCmd != 0 {
		p.cmd = md.Cmd
	}
	if md.Got&MetaExe != 0 {
		p.exe = md.Exe
	}
	if md.Got&MetaCwd != 0 {
		p.cwd = md.Cwd
	}
	if md.Got&MetaRoot != 0 {
		p.root = md.Root
	}
	if md.Got&MetaEnviron != 0 {
		p.environ = md.Environ
	}
	if md.Got&MetaUser != 0 {
		p.userID = md.UserID
		p.groupID = md.GroupID
		p.hasUser = true
	}
}

// reconcileTasks synchronizes the task sub-table with the fresh task
// records, applying the same new/update/replace protocol as the parent
// table. Tasks live and die with their refresh batch: anything not in
// it is removed, since a task outside its process has no meaning.
func (p *Process) reconcileTasks(recs []Record, src Source, kind RefreshKind) {
	if p.tasks == nil {
		p.tasks = make(map[Pid]*Process, len(recs))
	}
	seen := make(map[Pid]struct{}, len(recs))
	for i := range recs {
		rec := &recs[i]
		seen[rec.Pid] = struct{}{}
		if cur, ok := p.tasks[rec.Pid]; ok && cur.startTime == rec.StartTime {
			cur.apply(rec, src, kind)
			continue
		}
		// New tid, or the tid was recycled: build from scratch either way.
		task := newProcess(rec, src, kind)
		if !rec.HasParent {
			task.parent = p.pid
			task.hasParent = true
		}
		p.tasks[rec.Pid] = task
	}
	for tid := range p.tasks {
		if _, ok := seen[tid]; !ok {
			delete(p.tasks, tid)
		}
	}
}

// computeCPUUsage derives the usage percentage from the work delta over
// perCoreTotal ticks, clamped to maxUsage, and recurses into tasks.
// Entries observed only once keep a usage of 0.
func (p *Process) computeCPUUsage(perCoreTotal float32, maxUsage float32) {
	if p.cpu.Primed() {
		usage := float32(p.cpu.Delta()) / perCoreTotal * 100
		if usage > maxUsage {
			usage = maxUsage
		}
		if usage < 0 {
			usage = 0
		}
		p.cpuUsage = usage
	}
	for _, task := range p.tasks {
		task.computeCPUUsage(perCoreTotal, maxUsage)
	}
}

// switchTouched returns the current touched state and resets it, so the
// next cycle starts from a clean liveness slate.
func (p *Process) switchTouched() bool {
	t := p.touched
	p.touched = false
	return t
}
