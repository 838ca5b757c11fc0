package messages

import (
	"errors"
	"fmt"

	lockstepfb "github.com/cbodonnell/lockstep/flatbuffers/lockstep"
	"github.com/cbodonnell/lockstep/pkg/types"
	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrEmptyMessage is returned when a frame body has no kind byte.
var ErrEmptyMessage = errors.New("empty message")

// SerializeMessage returns the frame body for m.
func SerializeMessage(m *Message) []byte {
	b := make([]byte, 1+len(m.Payload))
	b[0] = byte(m.Kind)
	copy(b[1:], m.Payload)
	return b
}

// DeserializeMessage splits a frame body into kind and payload.
func DeserializeMessage(b []byte) (*Message, error) {
	if len(b) == 0 {
		return nil, ErrEmptyMessage
	}
	return &Message{
		Kind:    Kind(b[0]),
		Payload: b[1:],
	}, nil
}

// decode runs a flatbuffer accessor, turning the panics it raises on
// truncated or corrupt input into errors.
func decode[T any](what string, b []byte, fn func() T) (result T, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return result, fmt.Errorf("failed to deserialize %s: payload too short", what)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to deserialize %s: %v", what, r)
		}
	}()
	return fn(), nil
}

func serializeCommandFlatbuffer(builder *flatbuffers.Builder, c types.Command) flatbuffers.UOffsetT {
	var payload flatbuffers.UOffsetT
	if c.Payload != nil {
		payload = builder.CreateByteVector(c.Payload)
	}
	lockstepfb.CommandStart(builder)
	lockstepfb.CommandAddPlayerId(builder, c.PlayerID)
	lockstepfb.CommandAddSequence(builder, c.Sequence)
	lockstepfb.CommandAddType(builder, byte(c.Type))
	if c.Payload != nil {
		lockstepfb.CommandAddPayload(builder, payload)
	}
	return lockstepfb.CommandEnd(builder)
}

func deserializeCommandFlatbuffer(c *lockstepfb.Command) types.Command {
	command := types.Command{
		PlayerID: c.PlayerId(),
		Sequence: c.Sequence(),
		Type:     types.CommandType(c.Type()),
	}
	if payload := c.PayloadBytes(); payload != nil {
		command.Payload = make([]byte, len(payload))
		copy(command.Payload, payload)
	}
	return command
}

func serializeCommandsVector(builder *flatbuffers.Builder, commands []types.Command, start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(commands))
	for i, c := range commands {
		offsets[i] = serializeCommandFlatbuffer(builder, c)
	}
	start(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	return builder.EndVector(len(offsets))
}

func serializeBatchFlatbuffer(builder *flatbuffers.Builder, b types.Batch) flatbuffers.UOffsetT {
	commands := serializeCommandsVector(builder, b.Commands, lockstepfb.BatchStartCommandsVector)
	lockstepfb.BatchStart(builder)
	lockstepfb.BatchAddTick(builder, b.Tick)
	lockstepfb.BatchAddCommands(builder, commands)
	return lockstepfb.BatchEnd(builder)
}

func deserializeBatchFlatbuffer(fb *lockstepfb.Batch) types.Batch {
	b := types.Batch{Tick: fb.Tick()}
	c := &lockstepfb.Command{}
	for i := 0; i < fb.CommandsLength(); i++ {
		if fb.Commands(c, i) {
			b.Commands = append(b.Commands, deserializeCommandFlatbuffer(c))
		}
	}
	return b
}

func finish(kind Kind, builder *flatbuffers.Builder, root flatbuffers.UOffsetT) []byte {
	builder.Finish(root)
	return SerializeMessage(&Message{Kind: kind, Payload: builder.FinishedBytes()})
}

// SerializeBatch returns the BATCH frame body for b.
func SerializeBatch(b types.Batch) []byte {
	builder := flatbuffers.NewBuilder(0)
	return finish(KindBatch, builder, serializeBatchFlatbuffer(builder, b))
}

// DeserializeBatch decodes a BATCH payload.
func DeserializeBatch(payload []byte) (types.Batch, error) {
	return decode("batch", payload, func() types.Batch {
		return deserializeBatchFlatbuffer(lockstepfb.GetRootAsBatch(payload, 0))
	})
}

// SerializeCommands returns the COMMANDS frame body.
func SerializeCommands(m *Commands) []byte {
	builder := flatbuffers.NewBuilder(0)
	commands := serializeCommandsVector(builder, m.Commands, lockstepfb.CommandsStartCommandsVector)
	lockstepfb.CommandsStart(builder)
	lockstepfb.CommandsAddCommands(builder, commands)
	return finish(KindCommands, builder, lockstepfb.CommandsEnd(builder))
}

// DeserializeCommands decodes a COMMANDS payload.
func DeserializeCommands(payload []byte) (*Commands, error) {
	return decode("commands", payload, func() *Commands {
		fb := lockstepfb.GetRootAsCommands(payload, 0)
		m := &Commands{}
		c := &lockstepfb.Command{}
		for i := 0; i < fb.CommandsLength(); i++ {
			if fb.Commands(c, i) {
				m.Commands = append(m.Commands, deserializeCommandFlatbuffer(c))
			}
		}
		return m
	})
}

// SerializeJoin returns the JOIN frame body.
func SerializeJoin(m *Join) []byte {
	builder := flatbuffers.NewBuilder(0)
	token := builder.CreateString(m.Token)
	lockstepfb.JoinStart(builder)
	lockstepfb.JoinAddPlayerId(builder, m.PlayerID)
	lockstepfb.JoinAddLastTick(builder, m.LastTick)
	lockstepfb.JoinAddToken(builder, token)
	lockstepfb.JoinAddRole(builder, byte(m.Role))
	return finish(KindJoin, builder, lockstepfb.JoinEnd(builder))
}

// DeserializeJoin decodes a JOIN payload.
func DeserializeJoin(payload []byte) (*Join, error) {
	return decode("join", payload, func() *Join {
		fb := lockstepfb.GetRootAsJoin(payload, 0)
		return &Join{
			PlayerID: fb.PlayerId(),
			LastTick: fb.LastTick(),
			Token:    string(fb.Token()),
			Role:     types.Role(fb.Role()),
		}
	})
}

// SerializeHeartbeat returns the HEARTBEAT frame body.
func SerializeHeartbeat(m *Heartbeat) []byte {
	builder := flatbuffers.NewBuilder(64)
	lockstepfb.HeartbeatStart(builder)
	lockstepfb.HeartbeatAddTick(builder, m.Tick)
	lockstepfb.HeartbeatAddSentAt(builder, m.SentAt)
	lockstepfb.HeartbeatAddEchoSentAt(builder, m.EchoSentAt)
	lockstepfb.HeartbeatAddEchoHeld(builder, m.EchoHeld)
	return finish(KindHeartbeat, builder, lockstepfb.HeartbeatEnd(builder))
}

// DeserializeHeartbeat decodes a HEARTBEAT payload.
func DeserializeHeartbeat(payload []byte) (*Heartbeat, error) {
	return decode("heartbeat", payload, func() *Heartbeat {
		fb := lockstepfb.GetRootAsHeartbeat(payload, 0)
		return &Heartbeat{
			Tick:       fb.Tick(),
			SentAt:     fb.SentAt(),
			EchoSentAt: fb.EchoSentAt(),
			EchoHeld:   fb.EchoHeld(),
		}
	})
}

// SerializeResyncRequest returns the RESYNC_REQUEST frame body.
func SerializeResyncRequest(m *ResyncRequest) []byte {
	builder := flatbuffers.NewBuilder(32)
	lockstepfb.ResyncRequestStart(builder)
	lockstepfb.ResyncRequestAddFromTick(builder, m.FromTick)
	return finish(KindResyncRequest, builder, lockstepfb.ResyncRequestEnd(builder))
}

// DeserializeResyncRequest decodes a RESYNC_REQUEST payload.
func DeserializeResyncRequest(payload []byte) (*ResyncRequest, error) {
	return decode("resync request", payload, func() *ResyncRequest {
		fb := lockstepfb.GetRootAsResyncRequest(payload, 0)
		return &ResyncRequest{FromTick: fb.FromTick()}
	})
}

// SerializePeerLeft returns the PEER_LEFT frame body.
func SerializePeerLeft(m *PeerLeft) []byte {
	builder := flatbuffers.NewBuilder(32)
	lockstepfb.PeerLeftStart(builder)
	lockstepfb.PeerLeftAddPlayerId(builder, m.PlayerID)
	lockstepfb.PeerLeftAddTick(builder, m.Tick)
	return finish(KindPeerLeft, builder, lockstepfb.PeerLeftEnd(builder))
}

// DeserializePeerLeft decodes a PEER_LEFT payload.
func DeserializePeerLeft(payload []byte) (*PeerLeft, error) {
	return decode("peer left", payload, func() *PeerLeft {
		fb := lockstepfb.GetRootAsPeerLeft(payload, 0)
		return &PeerLeft{PlayerID: fb.PlayerId(), Tick: fb.Tick()}
	})
}

// SerializeWelcome returns the WELCOME frame body.
func SerializeWelcome(m *Welcome) []byte {
	builder := flatbuffers.NewBuilder(1024)

	batchOffsets := make([]flatbuffers.UOffsetT, len(m.Batches))
	for i, b := range m.Batches {
		batchOffsets[i] = serializeBatchFlatbuffer(builder, b)
	}
	lockstepfb.WelcomeStartBatchesVector(builder, len(batchOffsets))
	for i := len(batchOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(batchOffsets[i])
	}
	batches := builder.EndVector(len(batchOffsets))

	lockstepfb.WelcomeStartPeersVector(builder, len(m.Peers))
	for i := len(m.Peers) - 1; i >= 0; i-- {
		builder.PrependUint32(m.Peers[i])
	}
	peers := builder.EndVector(len(m.Peers))

	sessionID := builder.CreateString(m.SessionID)

	lockstepfb.WelcomeStart(builder)
	lockstepfb.WelcomeAddPlayerId(builder, m.PlayerID)
	lockstepfb.WelcomeAddSessionId(builder, sessionID)
	lockstepfb.WelcomeAddCurrentTick(builder, m.CurrentTick)
	lockstepfb.WelcomeAddBatches(builder, batches)
	lockstepfb.WelcomeAddPeers(builder, peers)
	return finish(KindWelcome, builder, lockstepfb.WelcomeEnd(builder))
}

// DeserializeWelcome decodes a WELCOME payload.
func DeserializeWelcome(payload []byte) (*Welcome, error) {
	return decode("welcome", payload, func() *Welcome {
		fb := lockstepfb.GetRootAsWelcome(payload, 0)
		m := &Welcome{
			PlayerID:    fb.PlayerId(),
			SessionID:   string(fb.SessionId()),
			CurrentTick: fb.CurrentTick(),
		}
		b := &lockstepfb.Batch{}
		for i := 0; i < fb.BatchesLength(); i++ {
			if fb.Batches(b, i) {
				m.Batches = append(m.Batches, deserializeBatchFlatbuffer(b))
			}
		}
		for i := 0; i < fb.PeersLength(); i++ {
			m.Peers = append(m.Peers, fb.Peers(i))
		}
		return m
	})
}

// SerializeReject returns the REJECT frame body.
func SerializeReject(m *Reject) []byte {
	builder := flatbuffers.NewBuilder(64)
	reason := builder.CreateString(m.Reason)
	lockstepfb.RejectStart(builder)
	lockstepfb.RejectAddReason(builder, reason)
	return finish(KindReject, builder, lockstepfb.RejectEnd(builder))
}

// DeserializeReject decodes a REJECT payload.
func DeserializeReject(payload []byte) (*Reject, error) {
	return decode("reject", payload, func() *Reject {
		fb := lockstepfb.GetRootAsReject(payload, 0)
		return &Reject{Reason: string(fb.Reason())}
	})
}
