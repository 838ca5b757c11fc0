package lockstep

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/lockstep/pkg/messages"
)

const maxRTTSamples = 10

// removeOutlierRTTs drops samples greater than twice the median that are
// also above 20ms.
func removeOutlierRTTs(samples []int64) []int64 {
	result := make([]int64, 0, len(samples))
	median := medianRTT(samples)
	for _, s := range samples {
		if s > 2*median && s > 20 {
			continue
		}
		result = append(result, s)
	}
	return result
}

func medianRTT(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	if len(sorted)%2 == 0 {
		return (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return sorted[len(sorted)/2]
}

// RTT keeps the last few round trip samples of a connection and averages
// them with outliers removed.
type RTT struct {
	lock    sync.Mutex
	samples []int64
	average float64
}

// Observe records a sample in milliseconds.
func (r *RTT) Observe(ms int64) {
	if ms < 0 {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	r.samples = append(r.samples, ms)
	for len(r.samples) > maxRTTSamples {
		r.samples = r.samples[1:]
	}
	sample := removeOutlierRTTs(r.samples)
	total := 0.0
	for _, s := range sample {
		total += float64(s)
	}
	r.average = total / float64(len(sample))
}

// Milliseconds returns the current estimate, or 0 without samples.
func (r *RTT) Milliseconds() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.average
}

// heartbeatEcho carries the timestamps needed to measure RTT from
// heartbeats alone. Each side echoes the last SentAt it received together
// with how long it held it before echoing.
type heartbeatEcho struct {
	remoteSentAt atomic.Int64
	receivedAt   atomic.Int64
}

// received stores the remote timestamp of an inbound heartbeat and returns
// the RTT it proves, if it carried an echo.
func (e *heartbeatEcho) received(hb *messages.Heartbeat, now time.Time) (int64, bool) {
	e.remoteSentAt.Store(hb.SentAt)
	e.receivedAt.Store(now.UnixMilli())
	if hb.EchoSentAt == 0 {
		return 0, false
	}
	return now.UnixMilli() - hb.EchoSentAt - hb.EchoHeld, true
}

// outgoing builds the next heartbeat for tick.
func (e *heartbeatEcho) outgoing(tick uint64, now time.Time) *messages.Heartbeat {
	hb := &messages.Heartbeat{
		Tick:   tick,
		SentAt: now.UnixMilli(),
	}
	if sentAt := e.remoteSentAt.Load(); sentAt != 0 {
		hb.EchoSentAt = sentAt
		hb.EchoHeld = now.UnixMilli() - e.receivedAt.Load()
	}
	return hb
}
