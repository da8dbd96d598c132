package proctable

// ProcessStatus is the run state of a process, mapped from whatever the
// platform reports (a stat character on Linux, a numeric code elsewhere).
type ProcessStatus uint8

const (
	// StatusUnknown means the platform reported a state we do not map.
	StatusUnknown ProcessStatus = iota
	// StatusRun means the process is runnable.
	StatusRun
	// StatusSleep means the process sleeps in an interruptible wait.
	StatusSleep
	// StatusIdle means the process is an idle kernel thread.
	StatusIdle
	// StatusDiskSleep means the process waits in uninterruptible disk sleep.
	StatusDiskSleep
	// StatusStop means the process is stopped on a signal.
	StatusStop
	// StatusZombie means the process has exited but was not reaped.
	StatusZombie
	// StatusTracing means the process is in a tracing stop.
	StatusTracing
	// StatusDead means the process is dead.
	StatusDead
	// StatusWakekill means wakekill (Linux 2.6.33 to 3.13 only).
	StatusWakekill
	// StatusWaking means waking (Linux 2.6.33 to 3.13 only).
	StatusWaking
	// StatusParked means parked (Linux 3.9 to 3.13 only).
	StatusParked
)

// StatusFromChar maps a Linux /proc stat state character to a ProcessStatus.
func StatusFromChar(c byte) ProcessStatus {
	switch c {
	case 'R':
		return StatusRun
	case 'S':
		return StatusSleep
	case 'I':
		return StatusIdle
	case 'D':
		return StatusDiskSleep
	case 'T':
		return StatusStop
	case 'Z':
		return StatusZombie
	case 't':
		return StatusTracing
	case 'X', 'x':
		return StatusDead
	case 'K':
		return StatusWakekill
	case 'W':
		return StatusWaking
	case 'P':
		return StatusParked
	default:
		return StatusUnknown
	}
}

func (s ProcessStatus) String() string {
	switch s {
	case StatusRun:
		return "Runnable"
	case StatusSleep:
		return "Sleeping"
	case StatusIdle:
		return "Idle"
	case StatusDiskSleep:
		return "UninterruptibleDiskSleep"
	case StatusStop:
		return "Stopped"
	case StatusZombie:
		return "Zombie"
	case StatusTracing:
		return "Tracing"
	case StatusDead:
		return "Dead"
	case StatusWakekill:
		return "Wakekill"
	case StatusWaking:
		return "Waking"
	case StatusParked:
		return "Parked"
	default:
		return "Unknown"
	}
}
