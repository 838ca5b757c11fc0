package replay

import (
	"context"
	"time"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/queue"
	"github.com/cbodonnell/lockstep/pkg/repositories"
	"github.com/cbodonnell/lockstep/pkg/repositories/models"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// Recorder persists the confirmed batches of one host as archived segments.
// Record is safe to call from the simulation thread; writes happen on the
// goroutine running Start.
type Recorder struct {
	repository repositories.Repository
	batches    *queue.InMemoryQueue[types.Batch]
	// unsaved holds batches whose segment failed to save. Only the Start
	// goroutine touches it.
	unsaved []types.Batch
	session    models.Session
	interval   time.Duration
	timeout    time.Duration
	logger     *log.Logger
	done       chan struct{}
}

type NewRecorderOptions struct {
	Repository repositories.Repository
	SessionID  string
	PlayerID   uint32
	Role       types.Role
	// Interval between segment flushes.
	Interval time.Duration
	// Timeout bounds the final flush once Start's context is done.
	Timeout time.Duration
	Logger  *log.Logger
}

func NewRecorder(opts NewRecorderOptions) *Recorder {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Recorder{
		repository: opts.Repository,
		batches:    queue.NewInMemoryQueue[types.Batch](0),
		session: models.Session{
			ID:       opts.SessionID,
			PlayerID: opts.PlayerID,
			Role:     opts.Role.String(),
		},
		interval: opts.Interval,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With("recorder", opts.SessionID),
		done:     make(chan struct{}),
	}
}

// Record queues b for the next flush. It never blocks.
func (r *Recorder) Record(b types.Batch) {
	if err := r.batches.Enqueue(b.Clone()); err != nil {
		r.logger.Error("Failed to queue batch %d: %v", b.Tick, err)
	}
}

// Done is closed once Start has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Start registers the session and flushes queued batches every interval
// until ctx is done, then flushes whatever is left.
func (r *Recorder) Start(ctx context.Context) {
	defer close(r.done)

	if err := r.repository.CreateSession(ctx, &r.session); err != nil {
		r.logger.Error("Failed to create session: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
			r.flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// flush saves every queued batch as one segment. Batches of a failed
// save are kept and lead the next segment.
func (r *Recorder) flush(ctx context.Context) {
	batches := append(r.unsaved, r.batches.ReadAll()...)
	r.unsaved = nil
	if len(batches) == 0 {
		return
	}

	archive, err := EncodeArchive(batches)
	if err != nil {
		r.logger.Error("Failed to encode segment: %v", err)
		r.unsaved = batches
		return
	}

	segment := &models.Segment{
		SessionID: r.session.ID,
		PlayerID:  r.session.PlayerID,
		FirstTick: batches[0].Tick,
		LastTick:  batches[len(batches)-1].Tick,
		Archive:   archive,
	}
	if err := r.repository.SaveSegment(ctx, segment); err != nil {
		r.logger.Error("Failed to save segment %d-%d, retrying next flush: %v", segment.FirstTick, segment.LastTick, err)
		r.unsaved = batches
		return
	}
	r.logger.Debug("Saved segment %d-%d (%d bytes)", segment.FirstTick, segment.LastTick, len(archive))
}
