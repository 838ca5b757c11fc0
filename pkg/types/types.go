package types

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// SystemPlayerID is the originating player id of commands injected by the leader.
const SystemPlayerID uint32 = 0

// Role is the role a host plays in a session.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleClient
	RoleServer
	RoleLeader
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	case RoleLeader:
		return "leader"
	case RoleFollower:
		return "follower"
	default:
		return "unknown"
	}
}

// CommandType distinguishes player issued commands from session events.
type CommandType uint8

const (
	CommandTypePlayer CommandType = iota
	CommandTypePeerJoined
	CommandTypePeerLeft
)

func (t CommandType) String() string {
	switch t {
	case CommandTypePlayer:
		return "player"
	case CommandTypePeerJoined:
		return "joined"
	case CommandTypePeerLeft:
		return "left"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Command is one player action, identified by (PlayerID, Sequence).
type Command struct {
	PlayerID uint32
	Sequence uint64
	Type     CommandType
	Payload  []byte
}

// NewSystemCommand builds a leader-injected command about subject.
func NewSystemCommand(t CommandType, sequence uint64, subject uint32) Command {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, subject)
	return Command{
		PlayerID: SystemPlayerID,
		Sequence: sequence,
		Type:     t,
		Payload:  payload,
	}
}

// IsSystem reports whether the command was injected by the leader.
func (c Command) IsSystem() bool {
	return c.PlayerID == SystemPlayerID
}

// Subject returns the peer a system command refers to.
func (c Command) Subject() (uint32, bool) {
	if !c.IsSystem() || len(c.Payload) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(c.Payload), true
}

// Clone returns a deep copy of the command.
func (c Command) Clone() Command {
	clone := c
	if c.Payload != nil {
		clone.Payload = make([]byte, len(c.Payload))
		copy(clone.Payload, c.Payload)
	}
	return clone
}

func (c Command) String() string {
	if subject, ok := c.Subject(); ok {
		return fmt.Sprintf("%d:%d:%s=%d", c.PlayerID, c.Sequence, c.Type, subject)
	}
	return fmt.Sprintf("%d:%d", c.PlayerID, c.Sequence)
}

// Batch is the ordered list of commands to apply at Tick.
type Batch struct {
	Tick     uint64
	Commands []Command
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	clone := Batch{Tick: b.Tick}
	if b.Commands != nil {
		clone.Commands = make([]Command, len(b.Commands))
		for i, c := range b.Commands {
			clone.Commands[i] = c.Clone()
		}
	}
	return clone
}

func (b Batch) String() string {
	parts := make([]string, 0, len(b.Commands))
	for _, c := range b.Commands {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("tick=%d commands=[%s]", b.Tick, strings.Join(parts, " "))
}
