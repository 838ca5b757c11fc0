package lockstep

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/messages"
	"github.com/cbodonnell/lockstep/pkg/network"
	"github.com/cbodonnell/lockstep/pkg/types"
)

const waitFor = 10 * time.Second

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.SuspectAfter = 150 * time.Millisecond
	cfg.LostAfter = 150 * time.Millisecond
	cfg.MaxSuspectDuration = 600 * time.Millisecond
	cfg.GapTimeout = 100 * time.Millisecond
	cfg.ResendInterval = 30 * time.Millisecond
	cfg.ReconnectAttempts = 3
	cfg.ReconnectMaxWait = 50 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.WriteTimeout = 500 * time.Millisecond
	cfg.ShutdownGrace = 500 * time.Millisecond
	cfg.ResyncPerSecond = 20
	return cfg
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0, log.LogLevelError)
}

func newTestLeader(t *testing.T, cfg config.Config) *Leader {
	t.Helper()
	l, err := StartLeader(context.Background(), LeaderOptions{
		Config:  cfg,
		Address: "127.0.0.1:0",
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, l) })
	return l
}

func newTestFollower(t *testing.T, cfg config.Config, address string) *Follower {
	t.Helper()
	f, err := StartFollower(context.Background(), FollowerOptions{
		Config:  cfg,
		Address: address,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, f) })
	return f
}

func shutdown(t *testing.T, h Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, h.Shutdown(ctx))
}

// collector polls a host the way a simulation would, checking every
// batch against its own tick counter.
type collector struct {
	host    Host
	counter TickCounter
	lock    sync.Mutex
	batches []types.Batch
	err     error
}

func newCollector(h Host) *collector {
	return &collector{host: h}
}

func (c *collector) poll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for b := range c.host.PollConfirmedBatches() {
		if err := c.counter.Advance(b); err != nil && c.err == nil {
			c.err = err
		}
		c.batches = append(c.batches, b)
	}
}

func (c *collector) latest() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.batches) == 0 {
		return 0
	}
	return c.batches[len(c.batches)-1].Tick
}

func (c *collector) snapshot() []types.Batch {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]types.Batch(nil), c.batches...)
}

// until polls until the host has delivered tick.
func (c *collector) until(t *testing.T, tick uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.poll()
		return c.latest() >= tick
	}, waitFor, 2*time.Millisecond)
	require.NoError(t, c.err)
}

// find polls until a delivered batch satisfies match.
func (c *collector) find(t *testing.T, match func(types.Batch) bool) types.Batch {
	t.Helper()
	var found types.Batch
	require.Eventually(t, func() bool {
		c.poll()
		for _, b := range c.snapshot() {
			if match(b) {
				found = b
				return true
			}
		}
		return false
	}, waitFor, 2*time.Millisecond)
	return found
}

func (c *collector) batch(tick uint64) (types.Batch, bool) {
	for _, b := range c.snapshot() {
		if b.Tick == tick {
			return b, true
		}
	}
	return types.Batch{}, false
}

func waitSynchronized(t *testing.T, l *Leader, ids ...uint32) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range ids {
			if l.peerState(id) != PeerSynchronized {
				return false
			}
		}
		return true
	}, waitFor, 2*time.Millisecond)
}

func hasCommandFrom(player uint32) func(types.Batch) bool {
	return func(b types.Batch) bool {
		for _, c := range b.Commands {
			if c.PlayerID == player {
				return true
			}
		}
		return false
	}
}

func leftBy(player uint32) func(types.Batch) bool {
	return func(b types.Batch) bool {
		return departures(b, player) > 0
	}
}

func departures(b types.Batch, player uint32) int {
	n := 0
	for _, c := range b.Commands {
		if subject, ok := c.Subject(); ok && subject == player && c.Type == types.CommandTypePeerLeft {
			n++
		}
	}
	return n
}

// rawPeer joins a leader over a bare TCP socket and speaks the wire
// protocol by hand.
type rawPeer struct {
	conn    net.Conn
	max     int
	welcome *messages.Welcome
}

func joinRaw(t *testing.T, cfg config.Config, address string) *rawPeer {
	t.Helper()
	conn, err := net.Dial("tcp", address)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &rawPeer{conn: conn, max: cfg.MaxFrameSize}
	p.write(t, messages.SerializeJoin(&messages.Join{Role: types.RoleFollower}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	for p.welcome == nil {
		body, err := network.ReadFrame(conn, p.max)
		require.NoError(t, err)
		msg, err := messages.DeserializeMessage(body)
		require.NoError(t, err)
		if msg.Kind == messages.KindWelcome {
			p.welcome, err = messages.DeserializeWelcome(msg.Payload)
			require.NoError(t, err)
		}
	}
	return p
}

func (p *rawPeer) write(t *testing.T, body []byte) {
	t.Helper()
	require.NoError(t, network.WriteFrame(p.conn, body, p.max))
}

// fakeLeader welcomes a single follower as player 2 and reports every
// command it received once the follower hangs up.
func fakeLeader(t *testing.T, cfg config.Config) (string, <-chan []types.Command) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	received := make(chan []types.Command, 1)
	go func() {
		var commands []types.Command
		defer func() { received <- commands }()

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := network.ReadFrame(conn, cfg.MaxFrameSize); err != nil {
			return
		}
		welcome := messages.SerializeWelcome(&messages.Welcome{
			PlayerID:  LeaderPlayerID + 1,
			SessionID: "fake",
			Peers:     []uint32{LeaderPlayerID, LeaderPlayerID + 1},
		})
		if err := network.WriteFrame(conn, welcome, cfg.MaxFrameSize); err != nil {
			return
		}
		for {
			body, err := network.ReadFrame(conn, cfg.MaxFrameSize)
			if err != nil {
				return
			}
			msg, err := messages.DeserializeMessage(body)
			if err != nil || msg.Kind != messages.KindCommands {
				continue
			}
			if m, err := messages.DeserializeCommands(msg.Payload); err == nil {
				commands = append(commands, m.Commands...)
			}
		}
	}()
	return listener.Addr().String(), received
}

func TestLockstep_IdenticalOutputOnEveryPeer(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	b := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID(), b.PlayerID())

	hosts := []Host{l, a, b}
	for i := 0; i < 6; i++ {
		for j, h := range hosts {
			h.SubmitLocalCommand(types.Command{Payload: []byte{byte(i), byte(j)}})
		}
		time.Sleep(3 * cfg.TickInterval)
	}

	collectors := []*collector{newCollector(l), newCollector(a), newCollector(b)}
	target := l.Tick() + 10
	for _, c := range collectors {
		c.until(t, target)
	}

	reference := collectors[0]
	for _, c := range collectors[1:] {
		for tick := uint64(1); tick <= target; tick++ {
			want, ok := reference.batch(tick)
			require.True(t, ok, "leader delivered tick %d", tick)
			got, ok := c.batch(tick)
			require.True(t, ok, "follower delivered tick %d", tick)
			assert.Equal(t, messages.SerializeBatch(want), messages.SerializeBatch(got), "tick %d", tick)
		}
	}

	for _, id := range []uint32{LeaderPlayerID, a.PlayerID(), b.PlayerID()} {
		reference.find(t, hasCommandFrom(id))
	}
}

func TestLockstep_SingleCommandScenario(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	b := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID(), b.PlayerID())

	ca, cb := newCollector(a), newCollector(b)
	a.SubmitLocalCommand(types.Command{Sequence: 5, Payload: []byte("move")})

	got := ca.find(t, hasCommandFrom(a.PlayerID()))
	require.Len(t, got.Commands, 1)
	assert.Equal(t, a.PlayerID(), got.Commands[0].PlayerID)
	assert.Equal(t, uint64(5), got.Commands[0].Sequence)
	assert.Equal(t, []byte("move"), got.Commands[0].Payload)

	cb.until(t, got.Tick)
	same, ok := cb.batch(got.Tick)
	require.True(t, ok)
	assert.Equal(t, got, same)
}

func TestLockstep_DuplicateSubmissionAppliedOnce(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	c := newCollector(l)
	a.SubmitLocalCommand(types.Command{Sequence: 7, Payload: []byte("build")})
	first := c.find(t, hasCommandFrom(a.PlayerID()))

	a.SubmitLocalCommand(types.Command{Sequence: 7, Payload: []byte("build")})
	c.until(t, first.Tick+20)

	count := 0
	for _, b := range c.snapshot() {
		for _, cmd := range b.Commands {
			if cmd.PlayerID == a.PlayerID() && cmd.Sequence == 7 {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestLockstep_DroppedPeerLeavesExactlyOnce(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	b, err := StartFollower(context.Background(), FollowerOptions{Config: cfg, Address: l.Addr(), Logger: quietLogger()})
	require.NoError(t, err)
	waitSynchronized(t, l, a.PlayerID(), b.PlayerID())
	gone := b.PlayerID()

	ca := newCollector(a)
	shutdown(t, b)

	left := ca.find(t, leftBy(gone))
	ca.until(t, left.Tick+20)
	require.NoError(t, ca.err)

	count := 0
	for _, batch := range ca.snapshot() {
		count += departures(batch, gone)
		for _, c := range batch.Commands {
			if batch.Tick > left.Tick {
				assert.NotEqual(t, gone, c.PlayerID, "no commands from a dropped peer")
			}
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, PeerDropped, l.peerState(gone))
	assert.Equal(t, Lost, l.ConnectionState(gone))
	assert.Eventually(t, func() bool { return a.ConnectionState(gone) == Lost }, waitFor, 2*time.Millisecond)
}

func TestLockstep_SilentJoinerIsDroppedOnce(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())
	ca := newCollector(a)

	silent := joinRaw(t, cfg, l.Addr()).welcome.PlayerID

	seen := make(map[PeerState]bool)
	require.Eventually(t, func() bool {
		state := l.peerState(silent)
		seen[state] = true
		return state == PeerDropped
	}, waitFor, time.Millisecond)
	assert.True(t, seen[PeerJoining], "joining before it went quiet")
	assert.True(t, seen[PeerSuspect], "suspect before it was dropped")
	assert.False(t, seen[PeerSynchronized], "never acknowledged a tick")

	left := ca.find(t, leftBy(silent))
	ca.until(t, left.Tick+20)
	require.NoError(t, ca.err)

	count := 0
	for _, batch := range ca.snapshot() {
		count += departures(batch, silent)
	}
	assert.Equal(t, 1, count)
}

func TestLockstep_SuspectPeerCommandsAreExcluded(t *testing.T) {
	cfg := testConfig()
	cfg.LostAfter = 2 * time.Second
	cfg.MaxSuspectDuration = 4 * time.Second
	l := newTestLeader(t, cfg)
	c := newCollector(l)

	p := joinRaw(t, cfg, l.Addr())
	id := p.welcome.PlayerID
	p.write(t, messages.SerializeHeartbeat(&messages.Heartbeat{
		Tick:   p.welcome.CurrentTick,
		SentAt: time.Now().UnixMilli(),
	}))
	waitSynchronized(t, l, id)

	p.write(t, messages.SerializeCommands(&messages.Commands{
		Commands: []types.Command{{Sequence: 1, Payload: []byte("in time")}},
	}))
	c.find(t, hasCommandFrom(id))

	require.Eventually(t, func() bool {
		return l.peerState(id) == PeerSuspect
	}, waitFor, time.Millisecond)
	p.write(t, messages.SerializeCommands(&messages.Commands{
		Commands: []types.Command{{Sequence: 2, Payload: []byte("while suspect")}},
	}))
	c.until(t, l.Tick()+20)

	for _, b := range c.snapshot() {
		for _, cmd := range b.Commands {
			if cmd.PlayerID == id {
				assert.Equal(t, uint64(1), cmd.Sequence, "tick %d", b.Tick)
			}
		}
	}
}

func TestLockstep_TransientSendFailureIsRetried(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	c := newCollector(a)
	c.until(t, l.Tick())
	injected := l.failSends(1, network.ErrSendQueueFull)

	target := l.Tick() + 30
	seen := make(map[PeerState]bool)
	require.Eventually(t, func() bool {
		seen[l.peerState(a.PlayerID())] = true
		c.poll()
		return c.latest() >= target
	}, waitFor, time.Millisecond)
	require.NoError(t, c.err)

	assert.Equal(t, 1, injected())
	assert.Equal(t, map[PeerState]bool{PeerSynchronized: true}, seen)
}

func TestFollower_ShutdownFlushesPendingCommands(t *testing.T) {
	cfg := testConfig()
	address, received := fakeLeader(t, cfg)
	f, err := StartFollower(context.Background(), FollowerOptions{Config: cfg, Address: address, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, LeaderPlayerID+1, f.PlayerID())

	f.SubmitLocalCommand(types.Command{Sequence: 1, Payload: []byte("last order")})
	shutdown(t, f)

	select {
	case commands := <-received:
		// resends may repeat it, nothing else was submitted
		require.NotEmpty(t, commands)
		for _, c := range commands {
			assert.Equal(t, []byte("last order"), c.Payload)
			assert.Equal(t, LeaderPlayerID+1, c.PlayerID)
		}
	case <-time.After(waitFor):
		t.Fatal("fake leader never saw the follower hang up")
	}
}

func TestLockstep_ReconnectResumesWithoutGap(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	c := newCollector(a)
	c.until(t, l.Tick())
	before := c.latest()

	a.severLeader()

	a.SubmitLocalCommand(types.Command{Payload: []byte("after reconnect")})
	c.find(t, hasCommandFrom(a.PlayerID()))
	c.until(t, before+30)
	require.NoError(t, c.err, "ticks are contiguous across the reconnect")

	seen := make(map[uint64]bool)
	for _, b := range c.snapshot() {
		assert.False(t, seen[b.Tick], "tick %d delivered twice", b.Tick)
		seen[b.Tick] = true
	}
	waitSynchronized(t, l, a.PlayerID())
	assert.Equal(t, Connected, a.ConnectionState(LeaderPlayerID))
}

func TestLockstep_LeaderLossIsFatal(t *testing.T) {
	cfg := testConfig()
	l, err := StartLeader(context.Background(), LeaderOptions{Config: cfg, Address: "127.0.0.1:0", Logger: quietLogger()})
	require.NoError(t, err)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	shutdown(t, l)

	select {
	case err := <-a.Errors():
		assert.True(t, IsFatalSession(err), "got %v", err)
	case <-time.After(waitFor):
		t.Fatal("expected a fatal session error")
	}
	assert.Equal(t, Lost, a.ConnectionState(LeaderPlayerID))
}

func TestLockstep_ServerAdmitsOneClient(t *testing.T) {
	cfg := testConfig()
	s, err := StartServer(context.Background(), LeaderOptions{Config: cfg, Address: "127.0.0.1:0", Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, s) })
	assert.Equal(t, types.RoleServer, s.Role())

	c, err := StartClient(context.Background(), FollowerOptions{Config: cfg, Address: s.Addr(), Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, c) })
	assert.Equal(t, types.RoleClient, c.Role())
	assert.Equal(t, LeaderPlayerID+1, c.PlayerID())
	assert.Equal(t, s.SessionID(), c.SessionID())

	_, err = StartClient(context.Background(), FollowerOptions{Config: cfg, Address: s.Addr(), Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, IsFatalSession(err))
	assert.Contains(t, err.Error(), "session full")
}

func TestLockstep_JoinTokenIsVerified(t *testing.T) {
	cfg := testConfig()
	l, err := StartLeader(context.Background(), LeaderOptions{
		Config:       cfg,
		Address:      "127.0.0.1:0",
		AuthProvider: providers.NewStaticTokenProvider("secret"),
		Logger:       quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, l) })

	_, err = StartFollower(context.Background(), FollowerOptions{Config: cfg, Address: l.Addr(), Token: "guess", Logger: quietLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")

	f, err := StartFollower(context.Background(), FollowerOptions{Config: cfg, Address: l.Addr(), Token: "secret", Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(t, f) })
	waitSynchronized(t, l, f.PlayerID())
}

func TestLockstep_WebSocketTransport(t *testing.T) {
	cfg := testConfig()
	cfg.Transport = "ws"
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	a.SubmitLocalCommand(types.Command{Payload: []byte("over ws")})
	got := newCollector(l).find(t, hasCommandFrom(a.PlayerID()))
	assert.Equal(t, []byte("over ws"), got.Commands[len(got.Commands)-1].Payload)
}

func TestLockstep_Status(t *testing.T) {
	cfg := testConfig()
	l := newTestLeader(t, cfg)
	a := newTestFollower(t, cfg, l.Addr())
	waitSynchronized(t, l, a.PlayerID())

	status := l.Status()
	assert.Equal(t, "leader", status.Role)
	assert.Equal(t, LeaderPlayerID, status.PlayerID)
	require.Len(t, status.Peers, 1)
	assert.Equal(t, a.PlayerID(), status.Peers[0].PlayerID)
	assert.Equal(t, "synchronized", status.Peers[0].State)
	assert.Equal(t, Connected, status.Peers[0].Connection)

	fs := a.Status()
	assert.Equal(t, "follower", fs.Role)
	assert.Equal(t, l.SessionID(), fs.SessionID)
	require.NotEmpty(t, fs.Peers)
	assert.Equal(t, LeaderPlayerID, fs.Peers[0].PlayerID)
}

func TestHost_ShutdownIsIdempotent(t *testing.T) {
	cfg := testConfig()
	l, err := StartLeader(context.Background(), LeaderOptions{Config: cfg, Address: "127.0.0.1:0", Logger: quietLogger()})
	require.NoError(t, err)

	shutdown(t, l)
	shutdown(t, l)

	_, open := <-l.Errors()
	assert.False(t, open, "errors channel is closed after shutdown")
}
