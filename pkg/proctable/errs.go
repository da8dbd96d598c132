package proctable

import "errors"

var (
	// ErrSourceUnavailable indicates that the raw snapshot source could
	// not produce a batch at all (e.g. /proc is missing). The table is
	// left untouched in that case.
	ErrSourceUnavailable = errors.New("proctable: snapshot source unavailable")

	// ErrNoRecord indicates that the source produced no record for a
	// requested pid, typically because the process exited mid-scan.
	ErrNoRecord = errors.New("proctable: no record for pid")
)
