package messages

import (
	"fmt"

	"github.com/cbodonnell/lockstep/pkg/types"
)

// Kind is the one-byte message kind that begins every frame body.
type Kind byte

// Message kinds
const (
	KindJoin          Kind = 1
	KindBatch         Kind = 2
	KindHeartbeat     Kind = 3
	KindResyncRequest Kind = 4
	KindPeerLeft      Kind = 5
	KindCommands      Kind = 6
	KindWelcome       Kind = 7
	KindReject        Kind = 8
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "JOIN"
	case KindBatch:
		return "BATCH"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindResyncRequest:
		return "RESYNC_REQUEST"
	case KindPeerLeft:
		return "PEER_LEFT"
	case KindCommands:
		return "COMMANDS"
	case KindWelcome:
		return "WELCOME"
	case KindReject:
		return "REJECT"
	default:
		return fmt.Sprintf("KIND(%d)", byte(k))
	}
}

// Message is a decoded frame body: the kind and its raw payload.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Join is sent by a follower right after connecting. A zero PlayerID asks
// the leader for a new id, otherwise the follower is reconnecting and
// LastTick is the last tick it applied.
type Join struct {
	PlayerID uint32
	LastTick uint64
	Token    string
	Role     types.Role
}

// Heartbeat carries the sender's last contiguous tick and timestamps used
// to estimate round trip time. All times are unix milliseconds.
type Heartbeat struct {
	Tick       uint64
	SentAt     int64
	EchoSentAt int64
	EchoHeld   int64
}

// ResyncRequest asks the leader for every batch from FromTick onward.
type ResyncRequest struct {
	FromTick uint64
}

// PeerLeft tells followers a peer was dropped at Tick.
type PeerLeft struct {
	PlayerID uint32
	Tick     uint64
}

// Commands carries a follower's pending local commands.
type Commands struct {
	Commands []types.Command
}

// Welcome answers a join or a resync request.
type Welcome struct {
	PlayerID    uint32
	SessionID   string
	CurrentTick uint64
	Batches     []types.Batch
	Peers       []uint32
}

// Reject refuses a join.
type Reject struct {
	Reason string
}
