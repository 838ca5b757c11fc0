package lockstep

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/network"
	"github.com/cbodonnell/lockstep/pkg/queue"
	"github.com/cbodonnell/lockstep/pkg/types"
	"github.com/cbodonnell/lockstep/pkg/workers"
)

// LeaderPlayerID is the player id of the leader's own host.
const LeaderPlayerID uint32 = 1

// Host is the local process's view of a lockstep session. Simulation code
// programs against it regardless of the topology behind it.
type Host interface {
	Role() types.Role
	PlayerID() uint32
	SessionID() string
	// SubmitLocalCommand enqueues a command issued by the local player. It
	// never blocks and never fails; a zero Sequence is assigned the next
	// local sequence number, a non-zero one marks a resubmission.
	SubmitLocalCommand(c types.Command)
	// PollConfirmedBatches yields the batches that are ready to apply, in
	// tick order without gaps. It never blocks and each batch is yielded
	// exactly once across calls.
	PollConfirmedBatches() iter.Seq[types.Batch]
	ConnectionState(peerID uint32) ConnectionState
	Status() Status
	// Errors reports DesynchronizationError and FatalSessionError values.
	// It is closed once the host has shut down.
	Errors() <-chan error
	Shutdown(ctx context.Context) error
}

// host is the state shared by every role.
type host struct {
	role      types.Role
	cfg       config.Config
	logger    *log.Logger
	sessionID atomic.Pointer[string]
	playerID  atomic.Uint32
	sequence  atomic.Uint64

	// outbound carries local commands from the simulation thread to the
	// network thread, inbound carries confirmed batches back.
	outbound *queue.InMemoryQueue[types.Command]
	inbound  *queue.TickQueue

	peers    *PeerTable
	pool     *workers.Pool
	failures *queue.InMemoryQueue[workers.TaskFailure]

	errs chan error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

func newHost(role types.Role, cfg config.Config, logger *log.Logger) *host {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("role", role.String())
	failures := queue.NewInMemoryQueue[workers.TaskFailure](0)
	ctx, cancel := context.WithCancel(context.Background())
	h := &host{
		role:     role,
		cfg:      cfg,
		logger:   logger,
		outbound: queue.NewInMemoryQueue[types.Command](0),
		inbound: queue.NewTickQueue(queue.NewTickQueueOptions{
			ReorderWindow: cfg.ReorderWindow,
		}),
		peers:    NewPeerTable(),
		failures: failures,
		pool: workers.NewPool(workers.NewPoolOptions{
			Workers:       cfg.Workers,
			QueueCapacity: cfg.PoolQueueCapacity,
			Failures:      failures,
			Logger:        logger,
		}),
		errs:   make(chan error, 16),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	empty := ""
	h.sessionID.Store(&empty)
	return h
}

func (h *host) Role() types.Role {
	return h.role
}

func (h *host) PlayerID() uint32 {
	return h.playerID.Load()
}

func (h *host) SessionID() string {
	return *h.sessionID.Load()
}

func (h *host) setSessionID(id string) {
	h.sessionID.Store(&id)
}

func (h *host) SubmitLocalCommand(c types.Command) {
	c = c.Clone()
	c.Type = types.CommandTypePlayer
	if c.Sequence == 0 {
		c.Sequence = h.sequence.Add(1)
	} else {
		for {
			current := h.sequence.Load()
			if c.Sequence <= current || h.sequence.CompareAndSwap(current, c.Sequence) {
				break
			}
		}
	}
	if err := h.outbound.Enqueue(c); err != nil {
		h.logger.Warn("Failed to enqueue local command %s: %v", c, err)
	}
}

func (h *host) PollConfirmedBatches() iter.Seq[types.Batch] {
	return func(yield func(types.Batch) bool) {
		// only what is ready now, so a call always terminates
		for n := h.inbound.Len(); n > 0; n-- {
			b, ok := h.inbound.Pop()
			if !ok {
				return
			}
			if !yield(b) {
				return
			}
		}
	}
}

func (h *host) Errors() <-chan error {
	return h.errs
}

// reportError surfaces err to the session layer without blocking the
// network thread.
func (h *host) reportError(err error) {
	select {
	case h.errs <- err:
	default:
		h.logger.Error("Error channel full, dropping: %v", err)
	}
}

// connectionOptions builds the transport options for one connection.
func (h *host) connectionOptions(heartbeat network.HeartbeatFunc) network.ConnectionOptions {
	return network.ConnectionOptions{
		SendQueueSize:     h.cfg.SendQueueSize,
		MaxFrameSize:      h.cfg.MaxFrameSize,
		WriteTimeout:      h.cfg.WriteTimeout,
		HeartbeatInterval: h.cfg.HeartbeatInterval,
		SuspectAfter:      h.cfg.SuspectAfter,
		LostAfter:         h.cfg.LostAfter,
		Heartbeat:         heartbeat,
		Logger:            h.logger,
	}
}

// shutdown stops the network loop, drains the pool, then runs
// closeTransport to flush and release sockets. It runs once; later calls
// return the first result.
func (h *host) shutdown(ctx context.Context, closeTransport func()) error {
	h.shutdownOnce.Do(func() {
		h.logger.Info("Shutting down")
		h.cancel()
		select {
		case <-h.done:
		case <-ctx.Done():
			h.logger.Warn("Network loop did not stop before the shutdown deadline")
		}

		// queued broadcasts and welcomes still write to open connections
		if err := h.pool.Shutdown(h.cfg.ShutdownGrace); err != nil {
			h.shutdownErr = fmt.Errorf("failed to shut down worker pool: %w", err)
		}

		closeTransport()

		for _, f := range h.failures.ReadAll() {
			h.logger.Debug("Task %s failed during shutdown: %v", f.Name, f.Err)
		}
		<-h.done
		close(h.errs)
		h.logger.Info("Shut down")
	})
	return h.shutdownErr
}
