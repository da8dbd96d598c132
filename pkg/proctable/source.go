package proctable

// Pid identifies an OS process. Pids are reused by the OS over time:
// equality of pids alone never implies identity of the underlying
// logical process (see Record.StartTime).
type Pid int32

// Selector names the set of processes a refresh cycle covers.
//
// A pid-set refresh only queries and reconciles the listed pids; every
// other entry in the table is left completely alone, including its
// touched flag.
type Selector struct {
	pids []Pid
	all  bool
}

// All selects every live process.
func All() Selector { return Selector{all: true} }

// Pids selects only the listed processes.
func Pids(pids ...Pid) Selector { return Selector{pids: pids} }

// IsAll reports whether the selector covers every process.
func (s Selector) IsAll() bool { return s.all }

// List returns the explicit pid set, nil for All.
func (s Selector) List() []Pid { return s.pids }

// Record is one normalized raw per-process sample produced by a Source
// for a refresh cycle. All counters are cumulative since process start.
type Record struct {
	Pid       Pid
	Parent    Pid  // meaningful only when HasParent
	HasParent bool
	// StartTime is the process start, in seconds since the epoch. It is
	// the discriminator for pid reuse: same pid, different start time
	// means a different logical process.
	StartTime uint64
	// RunTime is how long the process has been alive, in seconds.
	RunTime uint64

	Name   string
	Status ProcessStatus

	// CPUTicks is the cumulative work the process performed (user +
	// system clock ticks), valid when HasCPU.
	CPUTicks uint64
	HasCPU   bool

	// Memory and VirtualMemory are absolute gauges in bytes, valid when
	// HasMemory.
	Memory        uint64
	VirtualMemory uint64
	HasMemory     bool

	// ReadBytes and WrittenBytes are cumulative I/O counters, valid
	// when HasIO. Kernel threads typically have no I/O accounting.
	ReadBytes    uint64
	WrittenBytes uint64
	HasIO        bool

	// Tasks holds the raw records of this process' threads, already
	// scoped to this process. Task records never nest further.
	Tasks []Record
}

// MetaField is a bitmask of the lazily-fetched metadata fields.
type MetaField uint8

const (
	MetaCmd MetaField = 1 << iota
	MetaExe
	MetaCwd
	MetaRoot
	MetaEnviron
	MetaUser
)

// Metadata carries the lazily-fetched fields of one process. Got flags
// which fields the source actually managed to retrieve; the rest keep
// their zero value and must not overwrite previously known data.
type Metadata struct {
	Got MetaField

	Cmd     []string
	Exe     string
	Cwd     string
	Root    string
	Environ []string
	UserID  uint32
	GroupID uint32
}

// Source is the raw snapshot source the table consumes. One
// implementation exists per platform; the table never sees anything
// more OS-specific than these three calls.
type Source interface {
	// Batch returns the raw records for the selected processes. A pid
	// that exited mid-scan simply yields no record; only systemic
	// unavailability (the source as a whole unreachable) is an error.
	Batch(sel Selector, kind RefreshKind) ([]Record, error)

	// Metadata fetches the requested lazily-fetched fields for one pid.
	// Partial results are fine; fields that could not be read are
	// absent from Metadata.Got. Implementations must be safe for
	// concurrent calls: the table's parallel update phase invokes
	// Metadata from multiple workers at once.
	Metadata(pid Pid, want MetaField) (Metadata, error)

	// CPUTotals returns the system-wide cumulative CPU tick counter
	// (work plus idle, across all cores) and the number of logical
	// cores.
	CPUTotals() (ticks uint64, cores int, err error)
}
