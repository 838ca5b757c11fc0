package lockstep

import (
	"github.com/cbodonnell/lockstep/pkg/ipc"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// History is the bounded buffer of recently sealed batches. It is appended
// to by the network thread and read by pool workers answering joins and
// resyncs, so every access goes through the lock.
type History struct {
	lock    ipc.Mutex
	batches []types.Batch
	size    int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{
		batches: make([]types.Batch, 0, size),
		size:    size,
	}
}

// Append adds the next batch, trimming the oldest when full.
func (h *History) Append(b types.Batch) {
	h.lock.Do(func() {
		if len(h.batches) == h.size {
			copy(h.batches, h.batches[1:])
			h.batches = h.batches[:h.size-1]
		}
		h.batches = append(h.batches, b.Clone())
	})
}

// Latest returns the tick of the newest batch, or 0 when empty.
func (h *History) Latest() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.latest()
}

func (h *History) latest() uint64 {
	if len(h.batches) == 0 {
		return 0
	}
	return h.batches[len(h.batches)-1].Tick
}

// Oldest returns the tick of the oldest retained batch, or 0 when empty.
func (h *History) Oldest() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	if len(h.batches) == 0 {
		return 0
	}
	return h.batches[0].Tick
}

// Covers reports whether every batch from tick onward is still retained.
// Tick 0 means from the oldest retained batch.
func (h *History) Covers(tick uint64) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.covers(tick)
}

func (h *History) covers(tick uint64) bool {
	if tick == 0 || len(h.batches) == 0 || tick > h.latest() {
		return true
	}
	return tick >= h.batches[0].Tick
}

// Since returns copies of every batch from tick onward together with the
// latest tick, both read under the same lock.
func (h *History) Since(tick uint64) ([]types.Batch, uint64, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	latest := h.latest()
	if !h.covers(tick) {
		return nil, latest, ErrHistoryExceeded
	}
	if len(h.batches) == 0 || tick > latest {
		return nil, latest, nil
	}
	if tick == 0 {
		tick = h.batches[0].Tick
	}
	start := int(tick - h.batches[0].Tick)
	result := make([]types.Batch, 0, len(h.batches)-start)
	for _, b := range h.batches[start:] {
		result = append(result, b.Clone())
	}
	return result, latest, nil
}

func (h *History) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.batches)
}
