package network

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// Liveness is the transport's view of a connection's health.
type Liveness int

const (
	LivenessConnected Liveness = iota
	LivenessSuspect
	LivenessLost
)

func (l Liveness) String() string {
	switch l {
	case LivenessConnected:
		return "connected"
	case LivenessSuspect:
		return "suspect"
	default:
		return "lost"
	}
}

// HeartbeatFunc returns the frame body to send as a heartbeat.
type HeartbeatFunc func() []byte

type ConnectionOptions struct {
	SendQueueSize     int
	ReceiveQueueSize  int
	MaxFrameSize      int
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	// SuspectAfter is the silence after which the connection is Suspect.
	SuspectAfter time.Duration
	// LostAfter is the additional silence after which a Suspect connection is Lost.
	LostAfter time.Duration
	Heartbeat HeartbeatFunc
	Logger    *log.Logger
}

func (o ConnectionOptions) withDefaults() ConnectionOptions {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 1024
	}
	if o.ReceiveQueueSize <= 0 {
		o.ReceiveQueueSize = 1024
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 100 * time.Millisecond
	}
	if o.SuspectAfter <= 0 {
		o.SuspectAfter = 5 * o.HeartbeatInterval
	}
	if o.LostAfter <= 0 {
		o.LostAfter = o.SuspectAfter
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Connection is one framed stream to a remote host. A writer goroutine
// drains the bounded outbound queue and emits heartbeats, a reader
// goroutine fills the bounded inbound queue. Any received frame counts as
// traffic for liveness.
type Connection struct {
	conn net.Conn
	opts ConnectionOptions

	outbound chan []byte
	inbound  chan []byte

	heartbeat atomic.Pointer[HeartbeatFunc]

	closing     chan struct{}
	closingOnce sync.Once
	closed      chan struct{}
	closeOnce   sync.Once
	closeErr    atomic.Pointer[error]
	writerDone  chan struct{}
	wg          sync.WaitGroup

	created    time.Time
	lastSeen   atomic.Int64
	peerID     atomic.Uint32
	remoteRole atomic.Uint32
	lastTick   atomic.Uint64
	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64

	now func() time.Time
}

// NewConnection takes ownership of conn and starts its reader and writer.
func NewConnection(conn net.Conn, opts ConnectionOptions) *Connection {
	opts = opts.withDefaults()
	c := &Connection{
		conn:       conn,
		opts:       opts,
		outbound:   make(chan []byte, opts.SendQueueSize),
		inbound:    make(chan []byte, opts.ReceiveQueueSize),
		closing:    make(chan struct{}),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
		created:    time.Now(),
		now:        time.Now,
	}
	c.lastSeen.Store(c.created.UnixNano())
	if opts.Heartbeat != nil {
		c.SetHeartbeat(opts.Heartbeat)
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// SetHeartbeat replaces the heartbeat payload function.
func (c *Connection) SetHeartbeat(fn HeartbeatFunc) {
	c.heartbeat.Store(&fn)
}

// Send queues body for writing. It never blocks.
func (c *Connection) Send(body []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	case <-c.closing:
		return ErrConnectionClosed
	default:
	}
	if len(body) > c.opts.MaxFrameSize {
		return &ErrFrameTooLarge{Size: len(body), Max: c.opts.MaxFrameSize}
	}
	select {
	case c.outbound <- body:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// TryReceive returns the next buffered frame, ErrWouldBlock when none is
// buffered, or the close error once the connection is closed and drained.
func (c *Connection) TryReceive() ([]byte, error) {
	select {
	case b := <-c.inbound:
		return b, nil
	default:
	}
	select {
	case <-c.closed:
		return nil, c.Err()
	default:
		return nil, ErrWouldBlock
	}
}

// Receive blocks until a frame arrives, the connection closes or ctx is done.
func (c *Connection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.inbound:
		return b, nil
	default:
	}
	select {
	case b := <-c.inbound:
		return b, nil
	case <-c.closed:
		// frames that raced the close are still delivered
		select {
		case b := <-c.inbound:
			return b, nil
		default:
		}
		return nil, c.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Liveness reports Suspect after SuspectAfter without traffic and Lost
// after a further LostAfter, or as soon as the connection is closed.
func (c *Connection) Liveness() Liveness {
	select {
	case <-c.closed:
		return LivenessLost
	default:
	}
	silence := c.now().Sub(c.LastSeen())
	switch {
	case silence >= c.opts.SuspectAfter+c.opts.LostAfter:
		return LivenessLost
	case silence >= c.opts.SuspectAfter:
		return LivenessSuspect
	default:
		return LivenessConnected
	}
}

// LastSeen returns the time of the last received frame.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Connection) PeerID() uint32 {
	return c.peerID.Load()
}

func (c *Connection) SetPeerID(id uint32) {
	c.peerID.Store(id)
}

func (c *Connection) RemoteRole() types.Role {
	return types.Role(c.remoteRole.Load())
}

func (c *Connection) SetRemoteRole(role types.Role) {
	c.remoteRole.Store(uint32(role))
}

// LastReceivedTick is the last tick the remote host reported.
func (c *Connection) LastReceivedTick() uint64 {
	return c.lastTick.Load()
}

func (c *Connection) SetLastReceivedTick(tick uint64) {
	c.lastTick.Store(tick)
}

// BytesIn and BytesOut count framed bytes including headers.
func (c *Connection) BytesIn() uint64 {
	return c.bytesIn.Load()
}

func (c *Connection) BytesOut() uint64 {
	return c.bytesOut.Load()
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Closed is closed once the underlying socket is closed.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// Err returns why the connection closed, or nil while it is open.
func (c *Connection) Err() error {
	if err := c.closeErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Close flushes queued frames, waiting at most WriteTimeout, then closes
// the socket and waits for the reader and writer to exit.
func (c *Connection) Close() error {
	c.closingOnce.Do(func() {
		close(c.closing)
	})
	timer := time.NewTimer(c.opts.WriteTimeout)
	defer timer.Stop()
	select {
	case <-c.writerDone:
	case <-timer.C:
	}
	c.shutdown(ErrConnectionClosed)
	c.wg.Wait()
	return nil
}

// Abort closes the socket without flushing.
func (c *Connection) Abort() {
	c.shutdown(ErrConnectionClosed)
	c.wg.Wait()
}

func (c *Connection) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr.Store(&err)
		close(c.closed)
		if cerr := c.conn.Close(); cerr != nil && !isClosedError(cerr) {
			c.opts.Logger.Debug("Failed to close connection to %s: %v", c.RemoteAddr(), cerr)
		}
	})
}

func (c *Connection) readLoop() {
	defer c.wg.Done()
	r := bufio.NewReader(c.conn)
	for {
		body, err := ReadFrame(r, c.opts.MaxFrameSize)
		if err != nil {
			select {
			case <-c.closed:
			default:
				if err != ErrConnectionClosed {
					c.opts.Logger.Debug("Error reading from %s: %v", c.RemoteAddr(), err)
				}
			}
			c.shutdown(err)
			return
		}
		c.lastSeen.Store(c.now().UnixNano())
		c.bytesIn.Add(uint64(FrameHeaderSize + len(body)))
		select {
		case c.inbound <- body:
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) writeLoop() {
	defer c.wg.Done()
	defer close(c.writerDone)

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-c.closing:
			c.flush()
			return
		case body := <-c.outbound:
			if !c.write(body) {
				return
			}
		case <-ticker.C:
			fn := c.heartbeat.Load()
			if fn == nil || *fn == nil {
				continue
			}
			if !c.write((*fn)()) {
				return
			}
		}
	}
}

// flush writes whatever is still queued when Close is called.
func (c *Connection) flush() {
	for {
		select {
		case body := <-c.outbound:
			if !c.write(body) {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(body []byte) bool {
	if err := c.conn.SetWriteDeadline(c.now().Add(c.opts.WriteTimeout)); err != nil && !isClosedError(err) {
		c.opts.Logger.Debug("Failed to set write deadline for %s: %v", c.RemoteAddr(), err)
	}
	if err := WriteFrame(c.conn, body, c.opts.MaxFrameSize); err != nil {
		if isTimeout(err) {
			c.opts.Logger.Warn("Write to %s timed out after %s", c.RemoteAddr(), c.opts.WriteTimeout)
		} else if !isClosedError(err) {
			c.opts.Logger.Debug("Error writing to %s: %v", c.RemoteAddr(), err)
		}
		c.shutdown(err)
		return false
	}
	c.bytesOut.Add(uint64(FrameHeaderSize + len(body)))
	return true
}
