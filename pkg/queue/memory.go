package queue

import (
	"errors"

	"github.com/cbodonnell/lockstep/pkg/ipc"
)

// ErrQueueFull is returned by Enqueue when a bounded queue is at capacity.
var ErrQueueFull = errors.New("queue is full")

var _ Queue[int] = &InMemoryQueue[int]{}

// InMemoryQueue implements an in-memory queue.
type InMemoryQueue[T any] struct {
	lock     ipc.Mutex
	items    []T
	capacity int
	signal   *ipc.Signal
}

// NewInMemoryQueue creates a new queue.
// A capacity of zero or less means the queue is unbounded.
func NewInMemoryQueue[T any](capacity int) *InMemoryQueue[T] {
	return &InMemoryQueue[T]{
		capacity: capacity,
		signal:   ipc.NewSignal(),
	}
}

// Enqueue adds an item to the end of the queue. It never blocks.
func (q *InMemoryQueue[T]) Enqueue(item T) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	q.signal.Notify()
	return nil
}

// Dequeue removes and returns the item from the front of the queue.
func (q *InMemoryQueue[T]) Dequeue() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Size returns the current size of the queue.
func (q *InMemoryQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// ReadAll reads all pending items in the queue
func (q *InMemoryQueue[T]) ReadAll() []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Clear clears all items from the queue.
func (q *InMemoryQueue[T]) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.items = nil
}

// Signal is notified on every successful Enqueue.
func (q *InMemoryQueue[T]) Signal() *ipc.Signal {
	return q.signal
}
