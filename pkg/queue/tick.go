package queue

import (
	"fmt"
	"time"

	"github.com/cbodonnell/lockstep/pkg/ipc"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// ErrStaleTick is returned when a batch was already accepted or buffered.
type ErrStaleTick struct {
	Tick uint64
	Next uint64
}

func (e *ErrStaleTick) Error() string {
	return fmt.Sprintf("stale batch for tick %d, next expected tick is %d", e.Tick, e.Next)
}

func IsStaleTick(err error) bool {
	_, ok := err.(*ErrStaleTick)
	return ok
}

// ErrReorderWindow is returned when a batch is too far ahead of the next expected tick.
type ErrReorderWindow struct {
	Tick   uint64
	Next   uint64
	Window uint64
}

func (e *ErrReorderWindow) Error() string {
	return fmt.Sprintf("batch for tick %d is beyond the reorder window of %d from tick %d", e.Tick, e.Window, e.Next)
}

func IsReorderWindow(err error) bool {
	_, ok := err.(*ErrReorderWindow)
	return ok
}

// TickQueue is the inbound confirmed-batch queue. It releases batches
// strictly in tick order with no gaps and no duplicates, buffering batches
// that arrive early.
type TickQueue struct {
	lock     ipc.Mutex
	next     uint64
	started  bool
	ready    []types.Batch
	buffered map[uint64]types.Batch
	since    time.Time
	window   uint64
	signal   *ipc.Signal
	now      func() time.Time
}

type NewTickQueueOptions struct {
	// FirstTick is the first tick that will be released. Defaults to 1.
	FirstTick uint64
	// ReorderWindow bounds how far ahead of the next tick a batch may be buffered.
	ReorderWindow int
}

func NewTickQueue(opts NewTickQueueOptions) *TickQueue {
	first := opts.FirstTick
	if first == 0 {
		first = 1
	}
	window := uint64(0)
	if opts.ReorderWindow > 0 {
		window = uint64(opts.ReorderWindow)
	}
	return &TickQueue{
		next:     first,
		buffered: make(map[uint64]types.Batch),
		window:   window,
		signal:   ipc.NewSignal(),
		now:      time.Now,
	}
}

// Push offers a batch received from the network.
func (q *TickQueue) Push(b types.Batch) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if b.Tick < q.next {
		return &ErrStaleTick{Tick: b.Tick, Next: q.next}
	}
	if _, ok := q.buffered[b.Tick]; ok {
		return &ErrStaleTick{Tick: b.Tick, Next: q.next}
	}
	if b.Tick > q.next {
		if b.Tick-q.next > q.window {
			return &ErrReorderWindow{Tick: b.Tick, Next: q.next, Window: q.window}
		}
		if len(q.buffered) == 0 {
			q.since = q.now()
		}
		q.buffered[b.Tick] = b.Clone()
		return nil
	}

	q.ready = append(q.ready, b.Clone())
	q.next++
	q.started = true
	for {
		successor, ok := q.buffered[q.next]
		if !ok {
			break
		}
		delete(q.buffered, q.next)
		q.ready = append(q.ready, successor)
		q.next++
	}
	if len(q.buffered) > 0 {
		// the remaining batches now wait on a new gap
		q.since = q.now()
	}
	q.signal.Notify()
	return nil
}

// Pop removes the next ready batch. It never blocks.
func (q *TickQueue) Pop() (types.Batch, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.ready) == 0 {
		return types.Batch{}, false
	}
	b := q.ready[0]
	q.ready[0] = types.Batch{}
	q.ready = q.ready[1:]
	return b, true
}

// Drain removes every ready batch.
func (q *TickQueue) Drain() []types.Batch {
	q.lock.Lock()
	defer q.lock.Unlock()

	ready := q.ready
	q.ready = nil
	return ready
}

// Len returns the number of ready batches.
func (q *TickQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.ready)
}

// Accepted returns the highest contiguous tick accepted so far.
func (q *TickQueue) Accepted() uint64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.next - 1
}

// Next returns the tick the queue is waiting for.
func (q *TickQueue) Next() uint64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.next
}

// Missing reports the first missing tick when later batches are buffered,
// along with how long they have been waiting.
func (q *TickQueue) Missing() (uint64, time.Duration, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.buffered) == 0 {
		return 0, 0, false
	}
	return q.next, q.now().Sub(q.since), true
}

// Reset moves the first expected tick. It is only allowed before any batch
// has been accepted.
func (q *TickQueue) Reset(next uint64) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.started {
		return fmt.Errorf("cannot reset tick queue after tick %d was accepted", q.next-1)
	}
	if next == 0 {
		next = 1
	}
	q.next = next
	for tick := range q.buffered {
		if tick < next {
			delete(q.buffered, tick)
		}
	}
	return nil
}

// Signal is notified whenever batches become ready.
func (q *TickQueue) Signal() *ipc.Signal {
	return q.signal
}
