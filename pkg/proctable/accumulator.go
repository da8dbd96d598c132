package proctable

// Unsigned constrains the accumulator to unsigned counter types.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Accumulator pairs the previous and current samples of a monotonic
// counter so that per-cycle activity can be derived as a delta.
//
// A zero Accumulator is ready to use. Delta reports 0 until two samples
// have been applied: the first observation of an entity has no reference
// point, so there is no meaningful rate yet.
type Accumulator[T Unsigned] struct {
	prev, cur T
	hasPrev   bool
	hasCur    bool
}

// Update shifts the current sample into the previous slot and stores v
// as the new current sample.
func (a *Accumulator[T]) Update(v T) {
	if a.hasCur {
		a.prev = a.cur
		a.hasPrev = true
	}
	a.cur = v
	a.hasCur = true
}

// Delta returns the counter increase since the previous sample. Counter
// resets and wraparounds (current < previous) report 0 rather than
// underflowing.
func (a *Accumulator[T]) Delta() T {
	if !a.hasPrev || a.cur < a.prev {
		return 0
	}
	return a.cur - a.prev
}

// Current returns the latest sample, 0 if none was applied yet.
func (a *Accumulator[T]) Current() T { return a.cur }

// Primed reports whether the accumulator holds two samples, i.e. whether
// Delta is backed by an actual observation window.
func (a *Accumulator[T]) Primed() bool { return a.hasPrev }
