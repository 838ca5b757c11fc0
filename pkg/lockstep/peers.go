package lockstep

import (
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/cbodonnell/lockstep/pkg/ipc"
	"github.com/cbodonnell/lockstep/pkg/network"
)

// PeerState is the leader's protocol state for one remote peer.
type PeerState int

const (
	PeerJoining PeerState = iota
	PeerSynchronized
	PeerSuspect
	PeerResyncing
	PeerDropped
)

func (s PeerState) String() string {
	switch s {
	case PeerJoining:
		return "joining"
	case PeerSynchronized:
		return "synchronized"
	case PeerSuspect:
		return "suspect"
	case PeerResyncing:
		return "resyncing"
	case PeerDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// ConnectionState is what simulation code sees of a peer.
type ConnectionState int

const (
	Connected ConnectionState = iota
	Suspect
	Lost
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Suspect:
		return "suspect"
	default:
		return "lost"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s PeerState) connectionState() ConnectionState {
	switch s {
	case PeerJoining, PeerSynchronized, PeerResyncing:
		return Connected
	case PeerSuspect:
		return Suspect
	default:
		return Lost
	}
}

// Peer is one remote participant. Fields are only touched with the owning
// PeerTable's lock held.
type Peer struct {
	ID    uint32
	State PeerState

	conn *network.Connection
	// ackedTick is the highest tick the peer has reported applying.
	ackedTick uint64
	// syncTarget is the tick a joining or resyncing peer must acknowledge
	// before it is Synchronized again.
	syncTarget uint64
	// watermark is the acknowledged tick recorded when the peer became Suspect.
	watermark      uint64
	suspectSince   time.Time
	protocolErrors int

	rtt     RTT
	echo    *heartbeatEcho
	limiter *rate.Limiter
}

// PeerStatus is a read-only snapshot of a Peer.
type PeerStatus struct {
	PlayerID   uint32          `json:"player_id"`
	State      string          `json:"state"`
	Connection ConnectionState `json:"connection"`
	RTTMillis  float64         `json:"rtt_ms"`
	AckedTick  uint64          `json:"acked_tick"`
	Address    string          `json:"address,omitempty"`
}

// PeerTable is the host's connection table, shared between the network
// thread, pool workers and status readers.
type PeerTable struct {
	lock  ipc.Mutex
	peers map[uint32]*Peer
}

func NewPeerTable() *PeerTable {
	return &PeerTable{
		peers: make(map[uint32]*Peer),
	}
}

// Do runs fn with the table locked.
func (t *PeerTable) Do(fn func(peers map[uint32]*Peer)) {
	t.lock.Do(func() {
		fn(t.peers)
	})
}

// State returns the protocol state of id.
func (t *PeerTable) State(id uint32) (PeerState, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return PeerDropped, false
	}
	return p.State, true
}

// Active returns the ids of every peer that has not been dropped, sorted.
func (t *PeerTable) Active() []uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	ids := make([]uint32, 0, len(t.peers))
	for id, p := range t.peers {
		if p.State != PeerDropped {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the status of every peer, sorted by id.
func (t *PeerTable) Snapshot() []PeerStatus {
	t.lock.Lock()
	defer t.lock.Unlock()
	result := make([]PeerStatus, 0, len(t.peers))
	for _, p := range t.peers {
		result = append(result, p.status())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlayerID < result[j].PlayerID })
	return result
}

func (p *Peer) status() PeerStatus {
	s := PeerStatus{
		PlayerID:   p.ID,
		State:      p.State.String(),
		Connection: p.State.connectionState(),
		RTTMillis:  p.rtt.Milliseconds(),
		AckedTick:  p.ackedTick,
	}
	if p.conn != nil {
		s.Address = p.conn.RemoteAddr()
	}
	return s
}
