package procfs

import "errors"

var (
	// ErrNoStat indicates that a /proc/<pid>/stat read was empty or
	// malformed.
	ErrNoStat = errors.New("procfs: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields
	// than expected.
	ErrShortStat = errors.New("procfs: short stat")

	// ErrNoCPU indicates that /proc/stat had no aggregate CPU line.
	ErrNoCPU = errors.New("procfs: no cpu line")
)
