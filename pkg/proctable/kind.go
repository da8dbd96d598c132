package proctable

// UpdateKind selects the refresh policy for a lazily-fetched field.
type UpdateKind uint8

const (
	// Never leaves the field as-is.
	Never UpdateKind = iota
	// Always refetches the field every cycle.
	Always
	// OnlyIfNotSet fetches the field only while it is still unset.
	OnlyIfNotSet
)

// needsUpdate reports whether a field governed by k must be fetched this
// cycle. isSet is consulted only for OnlyIfNotSet.
func (k UpdateKind) needsUpdate(isSet func() bool) bool {
	switch k {
	case Never:
		return false
	case Always:
		return true
	default:
		return !isSet()
	}
}

func (k UpdateKind) String() string {
	switch k {
	case Always:
		return "Always"
	case OnlyIfNotSet:
		return "OnlyIfNotSet"
	default:
		return "Never"
	}
}

// RefreshKind selects which per-process information a refresh cycle
// retrieves. The zero value refreshes nothing beyond identity, name,
// status and tasks. RefreshKind is a value type: the With/Without
// methods return a modified copy, so configurations can be built up
// fluently and shared safely.
//
// Regardless of configuration, a refresh always maintains pid, parent,
// start time, name, run time and status: those come for free with the
// mandatory identity read.
type RefreshKind struct {
	cpu       bool
	memory    bool
	diskUsage bool
	tasks     bool

	cmd     UpdateKind
	exe     UpdateKind
	cwd     UpdateKind
	root    UpdateKind
	environ UpdateKind
	user    UpdateKind
}

// RefreshNothing returns a RefreshKind with everything disabled except
// task listing, which is cheap and keeps the nested tables populated.
func RefreshNothing() RefreshKind {
	return RefreshKind{tasks: true}
}

// RefreshEverything returns a RefreshKind with all booleans enabled and
// every lazily-fetched field set to OnlyIfNotSet.
func RefreshEverything() RefreshKind {
	return RefreshKind{
		cpu:       true,
		memory:    true,
		diskUsage: true,
		tasks:     true,
		cmd:       OnlyIfNotSet,
		exe:       OnlyIfNotSet,
		cwd:       OnlyIfNotSet,
		root:      OnlyIfNotSet,
		environ:   OnlyIfNotSet,
		user:      OnlyIfNotSet,
	}
}

// WithCPU enables CPU tick sampling and usage computation.
func (k RefreshKind) WithCPU() RefreshKind { k.cpu = true; return k }

// WithoutCPU disables CPU sampling.
func (k RefreshKind) WithoutCPU() RefreshKind { k.cpu = false; return k }

// CPU reports whether CPU sampling is enabled.
func (k RefreshKind) CPU() bool { return k.cpu }

// WithMemory enables memory gauge refresh.
func (k RefreshKind) WithMemory() RefreshKind { k.memory = true; return k }

// WithoutMemory disables memory gauge refresh.
func (k RefreshKind) WithoutMemory() RefreshKind { k.memory = false; return k }

// Memory reports whether memory refresh is enabled.
func (k RefreshKind) Memory() bool { return k.memory }

// WithDiskUsage enables disk I/O counter sampling.
func (k RefreshKind) WithDiskUsage() RefreshKind { k.diskUsage = true; return k }

// WithoutDiskUsage disables disk I/O counter sampling.
func (k RefreshKind) WithoutDiskUsage() RefreshKind { k.diskUsage = false; return k }

// DiskUsage reports whether disk I/O sampling is enabled.
func (k RefreshKind) DiskUsage() bool { return k.diskUsage }

// WithTasks enables refresh of the per-process task sub-tables.
func (k RefreshKind) WithTasks() RefreshKind { k.tasks = true; return k }

// WithoutTasks disables task refresh. Existing task sub-tables are left
// untouched.
func (k RefreshKind) WithoutTasks() RefreshKind { k.tasks = false; return k }

// Tasks reports whether task refresh is enabled.
func (k RefreshKind) Tasks() bool { return k.tasks }

// WithCmd sets the refresh policy for the command line.
func (k RefreshKind) WithCmd(u UpdateKind) RefreshKind { k.cmd = u; return k }

// Cmd returns the command-line refresh policy.
func (k RefreshKind) Cmd() UpdateKind { return k.cmd }

// WithExe sets the refresh policy for the executable path.
func (k RefreshKind) WithExe(u UpdateKind) RefreshKind { k.exe = u; return k }

// Exe returns the executable-path refresh policy.
func (k RefreshKind) Exe() UpdateKind { return k.exe }

// WithCwd sets the refresh policy for the working directory.
func (k RefreshKind) WithCwd(u UpdateKind) RefreshKind { k.cwd = u; return k }

// Cwd returns the working-directory refresh policy.
func (k RefreshKind) Cwd() UpdateKind { return k.cwd }

// WithRoot sets the refresh policy for the root directory.
func (k RefreshKind) WithRoot(u UpdateKind) RefreshKind { k.root = u; return k }

// Root returns the root-directory refresh policy.
func (k RefreshKind) Root() UpdateKind { return k.root }

// WithEnviron sets the refresh policy for the environment.
func (k RefreshKind) WithEnviron(u UpdateKind) RefreshKind { k.environ = u; return k }

// Environ returns the environment refresh policy.
func (k RefreshKind) Environ() UpdateKind { return k.environ }

// WithUser sets the refresh policy for user/group ids.
func (k RefreshKind) WithUser(u UpdateKind) RefreshKind { k.user = u; return k }

// User returns the user/group-id refresh policy.
func (k RefreshKind) User() UpdateKind { return k.user }

// metaFields returns the bitmask of metadata fields the policy wants
// fetched for an entry in its current state.
func (k RefreshKind) metaFields(p *Process) MetaField {
	var want MetaField
	if k.cmd.needsUpdate(func() bool { return len(p.cmd) > 0 }) {
		want |= MetaCmd
	}
	if k.exe.needsUpdate(func() bool { return p.exe != "" }) {
		want |= MetaExe
	}
	if k.cwd.needsUpdate(func() bool { return p.cwd != "" }) {
		want |= MetaCwd
	}
	if k.root.needsUpdate(func() bool { return p.root != "" }) {
		want |= MetaRoot
	}
	if k.environ.needsUpdate(func() bool { return len(p.environ) > 0 }) {
		want |= MetaEnviron
	}
	if k.user.needsUpdate(func() bool { return p.hasUser }) {
		want |= MetaUser
	}
	return want
}
