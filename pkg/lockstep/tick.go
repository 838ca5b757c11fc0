package lockstep

import "github.com/cbodonnell/lockstep/pkg/types"

// TickCounter tracks the simulation's own tick. Simulation code advances it
// with every delivered batch and treats an error as fatal.
//
// The zero value adopts the tick of the first batch it sees, which suits a
// host that joined a session already in progress.
type TickCounter struct {
	next uint64
}

// NewTickCounter expects first as the first delivered tick.
func NewTickCounter(first uint64) *TickCounter {
	return &TickCounter{next: first}
}

// Advance checks that b is the next tick and moves past it.
func (c *TickCounter) Advance(b types.Batch) error {
	if c.next == 0 {
		c.next = b.Tick
	}
	if b.Tick != c.next {
		return &DesynchronizationError{Expected: c.next, Got: b.Tick}
	}
	c.next++
	return nil
}

// Current returns the last tick advanced past, or 0 before the first batch.
func (c *TickCounter) Current() uint64 {
	if c.next == 0 {
		return 0
	}
	return c.next - 1
}
