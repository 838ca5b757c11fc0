package lockstep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/messages"
	"github.com/cbodonnell/lockstep/pkg/network"
	"github.com/cbodonnell/lockstep/pkg/types"
	"github.com/cbodonnell/lockstep/pkg/workers"
)

// maxFramesPerPoll bounds how many frames are taken from one connection
// per pass so a chatty peer cannot starve the others.
const maxFramesPerPoll = 64

type LeaderOptions struct {
	Config config.Config
	// Address is the listen address, e.g. ":8888".
	Address string
	// Transport overrides Config.Transport when set.
	Transport string
	// AuthProvider verifies JOIN tokens. Nil admits every peer.
	AuthProvider providers.AuthProvider
	// SessionID defaults to a new uuid.
	SessionID string
	Logger    *log.Logger
}

// pendingConn is an accepted connection that has not been admitted yet.
type pendingConn struct {
	conn     *network.Connection
	echo     *heartbeatEcho
	accepted time.Time
	join     *messages.Join
	auth     *workers.Future[*providers.TokenClaims]
	errors   int
}

// Leader sequences the session: it collects commands from every
// synchronized peer, seals one batch per tick and broadcasts it.
type Leader struct {
	*host

	opts     LeaderOptions
	listener network.Listener
	acceptWG sync.WaitGroup

	history   *History
	assembler *Assembler
	// tick is the last sealed tick, owned by the network loop.
	tick        uint64
	currentTick atomic.Uint64
	nextPeerID  uint32
	pending     map[*network.Connection]*pendingConn
	departed    []uint32
	broadcasts  *workers.Future[struct{}]
	// send writes one broadcast frame. advance captures it under the peer
	// lock.
	send sendFunc

	resendLock sync.Mutex
	resends    map[uint32]*workers.Future[struct{}]
}

type sendFunc func(conn *network.Connection, body []byte) error

func sendFrame(conn *network.Connection, body []byte) error {
	return conn.Send(body)
}

var _ Host = &Leader{}

// StartLeader listens on opts.Address and starts sequencing ticks.
func StartLeader(ctx context.Context, opts LeaderOptions) (*Leader, error) {
	return startLeader(ctx, types.RoleLeader, opts)
}

func startLeader(ctx context.Context, role types.Role, opts LeaderOptions) (*Leader, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	transport := opts.Transport
	if transport == "" {
		transport = opts.Config.Transport
	}
	listener, err := network.Listen(ctx, transport, opts.Address, opts.Config.MaxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Address, err)
	}

	l := &Leader{
		host:       newHost(role, opts.Config, opts.Logger),
		opts:       opts,
		listener:   listener,
		history:    NewHistory(opts.Config.HistorySize),
		assembler:  NewAssembler(),
		nextPeerID: LeaderPlayerID + 1,
		pending:    make(map[*network.Connection]*pendingConn),
		send:       sendFrame,
		resends:    make(map[uint32]*workers.Future[struct{}]),
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	l.setSessionID(sessionID)
	l.playerID.Store(LeaderPlayerID)
	l.logger = l.logger.With("session", sessionID)

	l.acceptWG.Add(1)
	go l.acceptLoop()
	go l.run()

	l.logger.Info("Leading session %s on %s (%s)", sessionID, listener.Addr(), transport)
	return l, nil
}

// Addr returns the address the leader is listening on.
func (l *Leader) Addr() string {
	return l.listener.Addr()
}

// Tick returns the last sealed tick.
func (l *Leader) Tick() uint64 {
	return l.currentTick.Load()
}

func (l *Leader) ConnectionState(peerID uint32) ConnectionState {
	if peerID == LeaderPlayerID {
		return Connected
	}
	state, ok := l.peers.State(peerID)
	if !ok {
		return Lost
	}
	return state.connectionState()
}

func (l *Leader) Status() Status {
	return Status{
		SessionID: l.SessionID(),
		Role:      l.role.String(),
		PlayerID:  LeaderPlayerID,
		Tick:      l.currentTick.Load(),
		Peers:     l.peers.Snapshot(),
	}
}

// Shutdown stops sequencing, flushes and closes every connection and
// drains the worker pool.
func (l *Leader) Shutdown(ctx context.Context) error {
	return l.shutdown(ctx, func() {
		if err := l.listener.Close(); err != nil {
			l.logger.Warn("Failed to close listener: %v", err)
		}
		l.acceptWG.Wait()

		var conns []*network.Connection
		l.peers.Do(func(peers map[uint32]*Peer) {
			for _, p := range peers {
				if p.conn != nil {
					conns = append(conns, p.conn)
					p.conn = nil
				}
			}
			for conn := range l.pending {
				conns = append(conns, conn)
			}
			l.pending = make(map[*network.Connection]*pendingConn)
		})

		var g errgroup.Group
		for _, conn := range conns {
			g.Go(func() error {
				conn.Close()
				return nil
			})
		}
		g.Wait()
	})
}

func (l *Leader) acceptLoop() {
	defer l.acceptWG.Done()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.ctx.Err() != nil || errors.Is(err, network.ErrConnectionClosed) {
				return
			}
			l.logger.Warn("Failed to accept connection: %v", err)
			continue
		}

		echo := &heartbeatEcho{}
		c := network.NewConnection(conn, l.connectionOptions(l.heartbeat(echo)))
		l.logger.Debug("Accepted connection from %s", c.RemoteAddr())
		l.peers.Do(func(map[uint32]*Peer) {
			l.pending[c] = &pendingConn{conn: c, echo: echo, accepted: time.Now()}
		})
	}
}

func (l *Leader) heartbeat(echo *heartbeatEcho) network.HeartbeatFunc {
	return func() []byte {
		return messages.SerializeHeartbeat(echo.outgoing(l.currentTick.Load(), time.Now()))
	}
}

func pollInterval(cfg config.Config) time.Duration {
	interval := cfg.TickInterval / 5
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	if interval > 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// run is the network thread. Every protocol state mutation happens here.
func (l *Leader) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	poll := time.NewTicker(pollInterval(l.cfg))
	defer poll.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case now := <-poll.C:
			l.peers.Do(func(peers map[uint32]*Peer) {
				l.service(peers, now)
			})
		case now := <-ticker.C:
			l.peers.Do(func(peers map[uint32]*Peer) {
				l.service(peers, now)
				l.advance(peers)
			})
		}
	}
}

func (l *Leader) service(peers map[uint32]*Peer, now time.Time) {
	l.handleFailures(peers)
	l.servicePending(peers, now)
	for _, p := range peers {
		if p.State == PeerDropped || p.conn == nil {
			continue
		}
		conn := p.conn
		for i := 0; i < maxFramesPerPoll && p.conn == conn; i++ {
			body, err := conn.TryReceive()
			if err != nil {
				break
			}
			l.handlePeerFrame(peers, p, body, now)
		}
	}
	l.checkLiveness(peers, now)
}

// handleFailures reacts to failed pool tasks. Tasks are tagged with the
// id of the peer they served.
func (l *Leader) handleFailures(peers map[uint32]*Peer) {
	for _, f := range l.failures.ReadAll() {
		id, ok := f.Tag.(uint32)
		if !ok {
			continue
		}
		p, ok := peers[id]
		if !ok || p.State == PeerDropped {
			continue
		}
		switch {
		case errors.Is(f.Err, ErrHistoryExceeded):
			if p.conn != nil {
				l.reject(p.conn, "history window exceeded")
				p.conn = nil
			}
			l.drop(p, "history window exceeded")
		case errors.Is(f.Err, network.ErrConnectionClosed):
			// liveness picks this up
		default:
			l.logger.Warn("Send to peer %d failed: %v", id, f.Err)
			l.markSuspect(p, time.Now())
		}
	}
}

func (l *Leader) servicePending(peers map[uint32]*Peer, now time.Time) {
	for conn, pc := range l.pending {
		if pc.auth != nil {
			select {
			case <-pc.auth.Done():
				delete(l.pending, conn)
				claims, err := pc.auth.Result()
				if err != nil {
					l.logger.Warn("Rejecting %s: %v", conn.RemoteAddr(), err)
					l.reject(conn, "authentication failed")
					continue
				}
				l.admit(peers, pc, claims)
			default:
			}
			continue
		}

		for i := 0; i < maxFramesPerPoll && pc.join == nil; i++ {
			body, err := conn.TryReceive()
			if err != nil {
				break
			}
			l.handlePendingFrame(peers, pc, body, now)
		}
		if _, ok := l.pending[conn]; !ok {
			continue
		}

		if conn.Liveness() == network.LivenessLost || now.Sub(pc.accepted) > l.cfg.MaxSuspectDuration {
			l.logger.Debug("Dropping unadmitted connection from %s", conn.RemoteAddr())
			delete(l.pending, conn)
			l.closeAsync(conn)
		}
	}
}

func (l *Leader) handlePendingFrame(peers map[uint32]*Peer, pc *pendingConn, body []byte, now time.Time) {
	msg, err := messages.DeserializeMessage(body)
	if err != nil {
		l.pendingProtocolError(pc, &ProtocolError{Reason: err.Error()})
		return
	}
	switch msg.Kind {
	case messages.KindJoin:
		join, err := messages.DeserializeJoin(msg.Payload)
		if err != nil {
			l.pendingProtocolError(pc, &ProtocolError{Kind: msg.Kind, Reason: err.Error()})
			return
		}
		pc.join = join
		pc.conn.SetRemoteRole(join.Role)
		if l.opts.AuthProvider == nil {
			delete(l.pending, pc.conn)
			l.admit(peers, pc, nil)
			return
		}
		token := join.Token
		pc.auth = workers.Submit(l.pool, "verify join token", func(ctx context.Context) (*providers.TokenClaims, error) {
			return l.opts.AuthProvider.VerifyToken(ctx, token)
		})
	case messages.KindHeartbeat:
		hb, err := messages.DeserializeHeartbeat(msg.Payload)
		if err != nil {
			l.pendingProtocolError(pc, &ProtocolError{Kind: msg.Kind, Reason: err.Error()})
			return
		}
		pc.echo.received(hb, now)
	default:
		l.pendingProtocolError(pc, &ProtocolError{Kind: msg.Kind, Reason: "expected JOIN"})
	}
}

func (l *Leader) pendingProtocolError(pc *pendingConn, err *ProtocolError) {
	pc.errors++
	l.logger.Warn("Discarding message from %s: %v", pc.conn.RemoteAddr(), err)
	if pc.errors > l.cfg.MaxProtocolErrors {
		delete(l.pending, pc.conn)
		l.closeAsync(pc.conn)
	}
}

// admit turns a joined connection into a peer, either a new one or a
// returning one resuming from its last applied tick.
func (l *Leader) admit(peers map[uint32]*Peer, pc *pendingConn, claims *providers.TokenClaims) {
	join := pc.join
	conn := pc.conn
	if claims != nil {
		l.logger.Debug("Verified %s as %s (expires %v)", conn.RemoteAddr(), claims.UID, claims.Expires)
	}

	if join.PlayerID == 0 {
		active := 0
		for _, p := range peers {
			if p.State != PeerDropped {
				active++
			}
		}
		if active >= l.cfg.MaxPeers {
			l.logger.Warn("Rejecting %s: session full", conn.RemoteAddr())
			l.reject(conn, "session full")
			return
		}

		p := &Peer{
			ID:         l.nextPeerID,
			State:      PeerJoining,
			conn:       conn,
			syncTarget: l.tick,
			echo:       pc.echo,
			limiter:    rate.NewLimiter(rate.Limit(l.cfg.ResyncPerSecond), 1),
		}
		l.nextPeerID++
		peers[p.ID] = p
		conn.SetPeerID(p.ID)
		l.assembler.AddSystem(types.CommandTypePeerJoined, p.ID)
		l.logger.Info("Peer %d joined from %s", p.ID, conn.RemoteAddr())
		l.welcome(peers, p, 0)
		return
	}

	p, ok := peers[join.PlayerID]
	if !ok || p.State == PeerDropped {
		l.logger.Warn("Rejecting %s: player %d is not in the session", conn.RemoteAddr(), join.PlayerID)
		l.reject(conn, "unknown player")
		return
	}
	if p.conn != nil && p.conn != conn {
		l.closeAsync(p.conn)
	}
	p.conn = conn
	p.echo = pc.echo
	p.protocolErrors = 0
	conn.SetPeerID(p.ID)

	from := join.LastTick + 1
	if !l.history.Covers(from) {
		l.logger.Warn("Peer %d reconnected at tick %d, outside the history window", p.ID, join.LastTick)
		l.reject(conn, "history window exceeded")
		p.conn = nil
		l.drop(p, "history window exceeded")
		return
	}
	p.State = PeerResyncing
	p.syncTarget = l.tick
	if join.LastTick > p.ackedTick {
		p.ackedTick = join.LastTick
	}
	l.logger.Info("Peer %d reconnected from %s at tick %d", p.ID, conn.RemoteAddr(), join.LastTick)
	l.welcome(peers, p, from)
}

// welcome sends every batch from tick from onward to p. It is built on a
// pool worker since the history can be large.
func (l *Leader) welcome(peers map[uint32]*Peer, p *Peer, from uint64) {
	known := []uint32{LeaderPlayerID}
	for id, other := range peers {
		if other.State != PeerDropped {
			known = append(known, id)
		}
	}
	conn := p.conn
	id := p.ID
	sessionID := l.SessionID()
	maxFrameSize := l.cfg.MaxFrameSize
	workers.SubmitTagged(l.pool, "welcome", id, func(ctx context.Context) (struct{}, error) {
		batches, current, err := l.history.Since(from)
		if err != nil {
			return struct{}{}, err
		}
		w := &messages.Welcome{
			PlayerID:    id,
			SessionID:   sessionID,
			CurrentTick: current,
			Batches:     batches,
			Peers:       known,
		}
		for _, body := range welcomeFrames(w, maxFrameSize) {
			if err := conn.Send(body); err != nil {
				return struct{}{}, &TransportError{Op: "welcome", PeerID: id, Err: err}
			}
		}
		return struct{}{}, nil
	})
}

// welcomeFrames splits w into as many WELCOME frames as needed to keep
// each one under max.
func welcomeFrames(w *messages.Welcome, max int) [][]byte {
	body := messages.SerializeWelcome(w)
	if len(body) <= max || len(w.Batches) <= 1 {
		return [][]byte{body}
	}
	half := len(w.Batches) / 2
	first := *w
	first.Batches = w.Batches[:half]
	second := *w
	second.Batches = w.Batches[half:]
	return append(welcomeFrames(&first, max), welcomeFrames(&second, max)...)
}

// reject tells conn why it is refused, then closes it.
func (l *Leader) reject(conn *network.Connection, reason string) {
	body := messages.SerializeReject(&messages.Reject{Reason: reason})
	workers.Submit(l.pool, "reject", func(ctx context.Context) (struct{}, error) {
		err := conn.Send(body)
		conn.Close()
		return struct{}{}, err
	})
}

func (l *Leader) closeAsync(conn *network.Connection) {
	workers.Submit(l.pool, "close connection", func(ctx context.Context) (struct{}, error) {
		conn.Abort()
		return struct{}{}, nil
	})
}

func (l *Leader) handlePeerFrame(peers map[uint32]*Peer, p *Peer, body []byte, now time.Time) {
	msg, err := messages.DeserializeMessage(body)
	if err != nil {
		l.protocolError(p, &ProtocolError{PeerID: p.ID, Reason: err.Error()})
		return
	}
	switch msg.Kind {
	case messages.KindHeartbeat:
		hb, err := messages.DeserializeHeartbeat(msg.Payload)
		if err != nil {
			l.protocolError(p, &ProtocolError{PeerID: p.ID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		if rtt, ok := p.echo.received(hb, now); ok {
			p.rtt.Observe(rtt)
		}
		if hb.Tick > p.ackedTick {
			p.ackedTick = hb.Tick
		}
		p.conn.SetLastReceivedTick(hb.Tick)
		if (p.State == PeerJoining || p.State == PeerResyncing) && p.ackedTick >= p.syncTarget {
			l.logger.Info("Peer %d synchronized at tick %d", p.ID, p.ackedTick)
			p.State = PeerSynchronized
		}

	case messages.KindCommands:
		cmds, err := messages.DeserializeCommands(msg.Payload)
		if err != nil {
			l.protocolError(p, &ProtocolError{PeerID: p.ID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		if p.State != PeerSynchronized {
			l.logger.Trace("Ignoring %d commands from %s peer %d", len(cmds.Commands), p.State, p.ID)
			return
		}
		for _, c := range cmds.Commands {
			c.PlayerID = p.ID
			if !l.assembler.Add(c) {
				l.logger.Trace("Discarding duplicate command %s", c)
			}
		}

	case messages.KindResyncRequest:
		req, err := messages.DeserializeResyncRequest(msg.Payload)
		if err != nil {
			l.protocolError(p, &ProtocolError{PeerID: p.ID, Kind: msg.Kind, Reason: err.Error()})
			return
		}
		if !p.limiter.Allow() {
			l.logger.Debug("Rate limited resync request from peer %d", p.ID)
			return
		}
		if !l.history.Covers(req.FromTick) {
			l.logger.Warn("Peer %d requested tick %d, outside the history window", p.ID, req.FromTick)
			l.reject(p.conn, "history window exceeded")
			p.conn = nil
			l.drop(p, "history window exceeded")
			return
		}
		l.logger.Debug("Resyncing peer %d from tick %d", p.ID, req.FromTick)
		l.welcome(peers, p, req.FromTick)

	default:
		l.protocolError(p, &ProtocolError{PeerID: p.ID, Kind: msg.Kind, Reason: "unexpected message"})
	}
}

func (l *Leader) protocolError(p *Peer, err *ProtocolError) {
	p.protocolErrors++
	l.logger.Warn("Discarding message: %v", err)
	if p.protocolErrors > l.cfg.MaxProtocolErrors && p.conn != nil {
		l.logger.Warn("Closing connection to peer %d after %d protocol errors", p.ID, p.protocolErrors)
		l.closeAsync(p.conn)
		p.conn = nil
	}
}

func (l *Leader) markSuspect(p *Peer, now time.Time) {
	if p.State == PeerSuspect {
		return
	}
	l.logger.Warn("Peer %d is suspect at tick %d", p.ID, p.ackedTick)
	p.State = PeerSuspect
	p.watermark = p.ackedTick
	p.suspectSince = now
	l.assembler.Discard(p.ID)
}

func (l *Leader) checkLiveness(peers map[uint32]*Peer, now time.Time) {
	for _, p := range peers {
		if p.State == PeerDropped {
			continue
		}
		liveness := network.LivenessLost
		if p.conn != nil {
			liveness = p.conn.Liveness()
		}

		if liveness == network.LivenessConnected {
			if p.State == PeerSuspect {
				l.logger.Info("Peer %d recovered, resyncing from tick %d", p.ID, p.watermark)
				p.State = PeerResyncing
				p.syncTarget = l.tick
			}
			continue
		}

		l.markSuspect(p, now)
		if liveness == network.LivenessLost && p.conn != nil {
			l.logger.Debug("Connection to peer %d lost", p.ID)
			l.closeAsync(p.conn)
			p.conn = nil
		}
		if now.Sub(p.suspectSince) > l.cfg.MaxSuspectDuration {
			l.drop(p, "suspect for too long")
		}
	}
}

// drop removes p from the session for good and schedules the departure
// event for the next batch.
func (l *Leader) drop(p *Peer, reason string) {
	if p.State == PeerDropped {
		return
	}
	l.logger.Warn("Dropping peer %d: %s", p.ID, reason)
	p.State = PeerDropped
	if p.conn != nil {
		l.closeAsync(p.conn)
		p.conn = nil
	}
	l.assembler.Discard(p.ID)
	l.assembler.AddSystem(types.CommandTypePeerLeft, p.ID)
	l.departed = append(l.departed, p.ID)
}

// advance seals the next tick and hands it to every host, including this one.
func (l *Leader) advance(peers map[uint32]*Peer) {
	for _, c := range l.outbound.ReadAll() {
		c.PlayerID = LeaderPlayerID
		if !l.assembler.Add(c) {
			l.logger.Trace("Discarding duplicate local command %s", c)
		}
	}

	l.tick++
	b := l.assembler.Seal(l.tick)
	l.history.Append(b)
	l.currentTick.Store(l.tick)
	if err := l.inbound.Push(b); err != nil {
		l.logger.Error("Failed to deliver tick %d locally: %v", b.Tick, err)
	}
	if len(b.Commands) > 0 {
		l.logger.Trace("Sealed %s", b)
	}

	type target struct {
		id   uint32
		conn *network.Connection
	}
	var targets []target
	for _, p := range peers {
		if p.State != PeerDropped && p.conn != nil {
			targets = append(targets, target{id: p.ID, conn: p.conn})
		}
	}
	var left [][]byte
	for _, id := range l.departed {
		left = append(left, messages.SerializePeerLeft(&messages.PeerLeft{PlayerID: id, Tick: b.Tick}))
	}
	l.departed = nil

	// each broadcast waits for the previous one so peers see ticks in order
	send := l.send
	previous := l.broadcasts
	l.broadcasts = workers.Submit(l.pool, "broadcast", func(ctx context.Context) (struct{}, error) {
		if previous != nil {
			previous.Wait(ctx)
		}
		frames := append([][]byte{messages.SerializeBatch(b)}, left...)
		for _, t := range targets {
			l.deliver(send, t.id, t.conn, frames)
		}
		return struct{}{}, nil
	})
}

// deliver writes frames to one peer. When a send fails, or an earlier
// resend to the peer is still running, the rest goes out on a retried task
// chained behind that peer's previous resend. The peer only turns suspect
// once the retries run out.
func (l *Leader) deliver(send sendFunc, id uint32, conn *network.Connection, frames [][]byte) {
	l.resendLock.Lock()
	defer l.resendLock.Unlock()

	previous := l.resends[id]
	if previous != nil {
		select {
		case <-previous.Done():
			delete(l.resends, id)
			previous = nil
		default:
		}
	}

	remaining := frames
	if previous == nil {
		for len(remaining) > 0 {
			err := send(conn, remaining[0])
			if errors.Is(err, network.ErrConnectionClosed) {
				// liveness picks this up
				return
			}
			if err != nil {
				l.logger.Debug("Send to peer %d failed, retrying: %v", id, err)
				break
			}
			remaining = remaining[1:]
		}
		if len(remaining) == 0 {
			return
		}
	}

	backoff := Backoff{
		Attempts: l.cfg.ReconnectAttempts,
		MaxWait:  l.cfg.ReconnectMaxWait,
		Report: func(attempt int, err error) error {
			if errors.Is(err, network.ErrConnectionClosed) {
				return err
			}
			l.logger.Debug("Resend %d to peer %d failed: %v", attempt, id, err)
			return nil
		},
	}
	l.resends[id] = workers.SubmitTagged(l.pool, "resend", id, func(ctx context.Context) (struct{}, error) {
		if previous != nil {
			previous.Wait(ctx)
		}
		err := backoff.Retry(ctx, func(ctx context.Context) error {
			for len(remaining) > 0 {
				if err := send(conn, remaining[0]); err != nil {
					return err
				}
				remaining = remaining[1:]
			}
			return nil
		})
		if err != nil {
			return struct{}{}, &TransportError{Op: "broadcast", PeerID: id, Err: err}
		}
		return struct{}{}, nil
	})
}
