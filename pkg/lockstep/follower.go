package lockstep

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/messages"
	"github.com/cbodonnell/lockstep/pkg/network"
	"github.com/cbodonnell/lockstep/pkg/queue"
	"github.com/cbodonnell/lockstep/pkg/types"
	"github.com/cbodonnell/lockstep/pkg/workers"
)

type FollowerOptions struct {
	Config config.Config
	// Address is the leader's address.
	Address string
	// Transport overrides Config.Transport when set.
	Transport string
	// Token is presented in JOIN for the leader to verify.
	Token  string
	Logger *log.Logger
}

// handshake is the outcome of a successful JOIN.
type handshake struct {
	conn    *network.Connection
	welcome *messages.Welcome
	// early holds batches that arrived before the WELCOME.
	early []types.Batch
}

// Follower submits local commands to the leader and applies the batches
// it broadcasts. Losing the leader ends the session.
type Follower struct {
	*host

	opts      FollowerOptions
	transport string
	echo      *heartbeatEcho

	// owned by the network loop
	leader     *network.Connection
	outbox     []types.Command
	maxSeen    uint64
	lastResend time.Time
	resyncs    *rate.Limiter
	reconnect  *workers.Future[*handshake]
	failed     bool
}

var _ Host = &Follower{}

// StartFollower joins the leader at opts.Address. It returns once the
// leader has welcomed this host into the session.
func StartFollower(ctx context.Context, opts FollowerOptions) (*Follower, error) {
	return startFollower(ctx, types.RoleFollower, opts)
}

func startFollower(ctx context.Context, role types.Role, opts FollowerOptions) (*Follower, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	transport := opts.Transport
	if transport == "" {
		transport = opts.Config.Transport
	}

	f := &Follower{
		host:      newHost(role, opts.Config, opts.Logger),
		opts:      opts,
		transport: transport,
		echo:      &heartbeatEcho{},
		resyncs:   rate.NewLimiter(rate.Limit(opts.Config.ResyncPerSecond), 1),
	}

	hs, err := f.join(ctx, 0, 0)
	if err != nil {
		f.cancel()
		if perr := f.pool.Shutdown(f.cfg.ShutdownGrace); perr != nil {
			f.logger.Warn("Failed to shut down worker pool: %v", perr)
		}
		return nil, err
	}

	w := hs.welcome
	f.playerID.Store(w.PlayerID)
	f.setSessionID(w.SessionID)
	f.logger = f.logger.With("session", w.SessionID).With("player", w.PlayerID)

	next := w.CurrentTick + 1
	if len(w.Batches) > 0 {
		next = w.Batches[0].Tick
	}
	if err := f.inbound.Reset(next); err != nil {
		hs.conn.Abort()
		f.cancel()
		f.pool.Shutdown(f.cfg.ShutdownGrace)
		return nil, fmt.Errorf("failed to reset inbound queue: %w", err)
	}
	f.peers.Do(func(peers map[uint32]*Peer) {
		f.install(peers, hs, time.Now())
	})

	go f.run()

	f.logger.Info("Joined session %s as player %d at tick %d", w.SessionID, w.PlayerID, w.CurrentTick)
	return f, nil
}

func (f *Follower) heartbeat() []byte {
	return messages.SerializeHeartbeat(f.echo.outgoing(f.inbound.Accepted(), time.Now()))
}

// join dials the leader and waits for its WELCOME or REJECT.
func (f *Follower) join(ctx context.Context, playerID uint32, lastTick uint64) (*handshake, error) {
	conn, err := network.Dial(ctx, f.transport, f.opts.Address, f.cfg.DialTimeout, f.connectionOptions(f.heartbeat))
	if err != nil {
		return nil, &TransportError{Op: "connect", PeerID: LeaderPlayerID, Err: err}
	}
	conn.SetPeerID(LeaderPlayerID)

	body := messages.SerializeJoin(&messages.Join{
		PlayerID: playerID,
		LastTick: lastTick,
		Token:    f.opts.Token,
		Role:     f.role,
	})
	if err := conn.Send(body); err != nil {
		conn.Abort()
		return nil, &TransportError{Op: "join", PeerID: LeaderPlayerID, Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.DialTimeout+f.cfg.SuspectAfter+f.cfg.LostAfter)
	defer cancel()

	hs := &handshake{conn: conn}
	for {
		body, err := conn.Receive(waitCtx)
		if err != nil {
			conn.Abort()
			return nil, &TransportError{Op: "join", PeerID: LeaderPlayerID, Err: err}
		}
		msg, err := messages.DeserializeMessage(body)
		if err != nil {
			f.logger.Warn("Discarding message during join: %v", err)
			continue
		}
		switch msg.Kind {
		case messages.KindWelcome:
			w, err := messages.DeserializeWelcome(msg.Payload)
			if err != nil {
				conn.Abort()
				return nil, &TransportError{Op: "join", PeerID: LeaderPlayerID, Err: err}
			}
			hs.welcome = w
			return hs, nil
		case messages.KindReject:
			reason := "no reason given"
			if r, err := messages.DeserializeReject(msg.Payload); err == nil {
				reason = r.Reason
			}
			conn.Abort()
			return nil, &FatalSessionError{Reason: "join rejected: " + reason}
		case messages.KindBatch:
			b, err := messages.DeserializeBatch(msg.Payload)
			if err != nil {
				f.logger.Warn("Discarding malformed batch during join: %v", err)
				continue
			}
			hs.early = append(hs.early, b)
		case messages.KindHeartbeat:
			if hb, err := messages.DeserializeHeartbeat(msg.Payload); err == nil {
				f.echo.received(hb, time.Now())
			}
		}
	}
}

// install adopts the connection of a successful handshake and applies
// everything it carried.
func (f *Follower) install(peers map[uint32]*Peer, hs *handshake, now time.Time) {
	f.leader = hs.conn
	leader, ok := peers[LeaderPlayerID]
	if !ok {
		leader = &Peer{ID: LeaderPlayerID, echo: f.echo}
		peers[LeaderPlayerID] = leader
	}
	leader.State = PeerSynchronized
	leader.conn = hs.conn

	for _, id := range hs.welcome.Peers {
		if id == f.PlayerID() || id == LeaderPlayerID {
			continue
		}
		if _, ok := peers[id]; !ok {
			peers[id] = &Peer{ID: id, State: PeerSynchronized}
		}
	}

	f.push(peers, hs.welcome.Batches, now)
	f.push(peers, hs.early, now)
	f.resend(now)
}

// push offers batches to the inbound queue and observes the ones accepted.
func (f *Follower) push(peers map[uint32]*Peer, batches []types.Batch, now time.Time) {
	for _, b := range batches {
		err := f.inbound.Push(b)
		switch {
		case err == nil:
			f.observe(peers, b)
		case queue.IsStaleTick(err):
			f.logger.Trace("Ignoring duplicate tick %d", b.Tick)
		case queue.IsReorderWindow(err):
			f.logger.Debug("Tick %d is too far ahead: %v", b.Tick, err)
			f.requestResync(now)
		default:
			f.logger.Error("Failed to queue tick %d: %v", b.Tick, err)
		}
	}
}

// observe tracks which local commands the leader has confirmed and which
// peers joined or left.
func (f *Follower) observe(peers map[uint32]*Peer, b types.Batch) {
	self := f.PlayerID()
	for _, c := range b.Commands {
		if c.PlayerID == self && c.Sequence > f.maxSeen {
			f.maxSeen = c.Sequence
		}
		subject, ok := c.Subject()
		if !ok || subject == self {
			continue
		}
		switch c.Type {
		case types.CommandTypePeerJoined:
			if _, ok := peers[subject]; !ok {
				peers[subject] = &Peer{ID: subject, State: PeerSynchronized}
			}
		case types.CommandTypePeerLeft:
			if p, ok := peers[subject]; ok {
				p.State = PeerDropped
			} else {
				peers[subject] = &Peer{ID: subject, State: PeerDropped}
			}
		}
	}
}

func (f *Follower) requestResync(now time.Time) {
	if f.leader == nil || !f.resyncs.AllowN(now, 1) {
		return
	}
	from := f.inbound.Next()
	f.logger.Debug("Requesting resync from tick %d", from)
	body := messages.SerializeResyncRequest(&messages.ResyncRequest{FromTick: from})
	if err := f.leader.Send(body); err != nil {
		f.logger.Debug("Failed to send resync request: %v", err)
	}
}

// resend sends every unconfirmed command again.
func (f *Follower) resend(now time.Time) {
	f.lastResend = now
	if len(f.outbox) == 0 || f.leader == nil {
		return
	}
	f.send(f.outbox)
}

func (f *Follower) send(commands []types.Command) {
	body := messages.SerializeCommands(&messages.Commands{Commands: commands})
	if err := f.leader.Send(body); err != nil {
		f.logger.Debug("Failed to send %d commands: %v", len(commands), err)
	}
}

func (f *Follower) ConnectionState(peerID uint32) ConnectionState {
	if peerID == f.PlayerID() {
		return Connected
	}
	state, ok := f.peers.State(peerID)
	if !ok {
		return Lost
	}
	return state.connectionState()
}

func (f *Follower) Status() Status {
	return Status{
		SessionID: f.SessionID(),
		Role:      f.role.String(),
		PlayerID:  f.PlayerID(),
		Tick:      f.inbound.Accepted(),
		Peers:     f.peers.Snapshot(),
	}
}

// Shutdown flushes pending commands to the leader, closes the connection
// and drains the worker pool.
func (f *Follower) Shutdown(ctx context.Context) error {
	err := f.shutdown(ctx, func() {
		var conn *network.Connection
		f.peers.Do(func(map[uint32]*Peer) {
			if f.leader != nil && !f.failed {
				f.flush(time.Now())
			}
			conn = f.leader
			f.leader = nil
		})
		if conn != nil {
			conn.Close()
		}
	})
	// a reconnect that finished after the loop stopped was never installed
	if f.reconnect != nil {
		if hs, rerr := f.reconnect.Result(); rerr == nil && hs != nil {
			hs.conn.Abort()
		}
	}
	return err
}

// run is the network thread.
func (f *Follower) run() {
	defer close(f.done)

	ticker := time.NewTicker(pollInterval(f.cfg))
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case now := <-ticker.C:
			f.peers.Do(func(peers map[uint32]*Peer) {
				f.step(peers, now)
			})
			if f.failed {
				return
			}
		}
	}
}

func (f *Follower) step(peers map[uint32]*Peer, now time.Time) {
	if f.reconnect != nil {
		select {
		case <-f.reconnect.Done():
		default:
			return
		}
		hs, err := f.reconnect.Result()
		f.reconnect = nil
		if err != nil {
			f.fail(peers, err)
			return
		}
		f.logger.Info("Reconnected to leader at tick %d", f.inbound.Accepted())
		f.install(peers, hs, now)
	}
	if f.leader == nil {
		return
	}

	conn := f.leader
	for i := 0; i < maxFramesPerPoll && f.leader == conn && !f.failed; i++ {
		body, err := conn.TryReceive()
		if err != nil {
			break
		}
		f.handleFrame(peers, body, now)
	}
	if f.failed || f.leader == nil {
		return
	}

	leader := peers[LeaderPlayerID]
	switch conn.Liveness() {
	case network.LivenessConnected:
		if leader.State == PeerSuspect {
			f.logger.Info("Leader recovered")
		}
		leader.State = PeerSynchronized
	case network.LivenessSuspect:
		if leader.State != PeerSuspect {
			f.logger.Warn("Leader is suspect")
		}
		leader.State = PeerSuspect
	default:
		f.startReconnect(leader)
		return
	}

	f.flush(now)

	if _, waiting, ok := f.inbound.Missing(); ok && waiting >= f.cfg.GapTimeout {
		f.requestResync(now)
	}
}

// flush moves newly submitted commands into the outbox and sends them,
// resending unconfirmed ones every ResendInterval.
func (f *Follower) flush(now time.Time) {
	self := f.PlayerID()
	fresh := f.outbound.ReadAll()
	for i := range fresh {
		fresh[i].PlayerID = self
	}
	f.outbox = append(f.outbox, fresh...)

	kept := f.outbox[:0]
	for _, c := range f.outbox {
		if c.Sequence > f.maxSeen {
			kept = append(kept, c)
		}
	}
	f.outbox = kept
	sort.SliceStable(f.outbox, func(i, j int) bool {
		return f.outbox[i].Sequence < f.outbox[j].Sequence
	})

	if now.Sub(f.lastResend) >= f.cfg.ResendInterval {
		f.resend(now)
		return
	}
	if len(fresh) > 0 {
		f.send(fresh)
	}
}

func (f *Follower) handleFrame(peers map[uint32]*Peer, body []byte, now time.Time) {
	msg, err := messages.DeserializeMessage(body)
	if err != nil {
		f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Reason: err.Error()})
		return
	}
	switch msg.Kind {
	case messages.KindBatch:
		b, err := messages.DeserializeBatch(msg.Payload)
		if err != nil {
			f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		f.push(peers, []types.Batch{b}, now)
		f.leader.SetLastReceivedTick(b.Tick)

	case messages.KindWelcome:
		w, err := messages.DeserializeWelcome(msg.Payload)
		if err != nil {
			f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		f.push(peers, w.Batches, now)
		f.resend(now)

	case messages.KindHeartbeat:
		hb, err := messages.DeserializeHeartbeat(msg.Payload)
		if err != nil {
			f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		if rtt, ok := f.echo.received(hb, now); ok {
			peers[LeaderPlayerID].rtt.Observe(rtt)
		}

	case messages.KindPeerLeft:
		left, err := messages.DeserializePeerLeft(msg.Payload)
		if err != nil {
			f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		f.logger.Info("Peer %d left at tick %d", left.PlayerID, left.Tick)
		if p, ok := peers[left.PlayerID]; ok {
			p.State = PeerDropped
		}

	case messages.KindReject:
		reason := "no reason given"
		if r, err := messages.DeserializeReject(msg.Payload); err == nil {
			reason = r.Reason
		}
		f.leader.Abort()
		f.leader = nil
		f.fail(peers, &FatalSessionError{Reason: "rejected by leader: " + reason})

	default:
		f.logger.Warn("Discarding message: %v", &ProtocolError{PeerID: LeaderPlayerID, Kind: msg.Kind, Reason: "unexpected message"})
	}
}

// startReconnect abandons the lost connection and rejoins in the
// background, resuming from the last applied tick.
func (f *Follower) startReconnect(leader *Peer) {
	f.logger.Warn("Lost connection to leader at tick %d, reconnecting", f.inbound.Accepted())
	f.leader.Abort()
	f.leader = nil
	leader.conn = nil
	leader.State = PeerSuspect

	id := f.PlayerID()
	backoff := Backoff{
		Attempts: f.cfg.ReconnectAttempts,
		MaxWait:  f.cfg.ReconnectMaxWait,
		Report: func(attempt int, err error) error {
			f.logger.Warn("Reconnect attempt %d failed: %v", attempt, err)
			if IsFatalSession(err) {
				return err
			}
			return nil
		},
	}
	f.reconnect = workers.Submit(f.pool, "reconnect", func(ctx context.Context) (*handshake, error) {
		var hs *handshake
		err := backoff.Retry(ctx, func(ctx context.Context) error {
			var err error
			hs, err = f.join(ctx, id, f.inbound.Accepted())
			return err
		})
		if err != nil {
			return nil, err
		}
		return hs, nil
	})
}

// fail ends the session for this host.
func (f *Follower) fail(peers map[uint32]*Peer, err error) {
	if leader, ok := peers[LeaderPlayerID]; ok {
		leader.State = PeerDropped
		leader.conn = nil
	}
	f.failed = true
	if !IsFatalSession(err) {
		err = &FatalSessionError{Reason: "lost connection to leader", Err: err}
	}
	f.logger.Error("%v", err)
	f.reportError(err)
}
