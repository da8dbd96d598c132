package procfs

import "sync"

// handleBudget caps how many per-process stat files the source keeps
// open between refresh cycles, so a large process table cannot starve
// the hosting application of file descriptors.
type handleBudget struct {
	mu        sync.Mutex
	remaining int
}

func newHandleBudget(n int) *handleBudget {
	return &handleBudget{remaining: n}
}

// acquire reserves one slot, false when the budget is exhausted. A
// failed acquire is not an error: the caller falls back to one-shot
// open/read/close.
func (b *handleBudget) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// release returns one slot.
func (b *handleBudget) release() {
	b.mu.Lock()
	b.remaining++
	b.mu.Unlock()
}

func (b *handleBudget) free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
