package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/types"
)

func TestSerializeDeserializeBatch(t *testing.T) {
	tests := []struct {
		name  string
		batch types.Batch
	}{
		{
			name:  "Empty batch",
			batch: types.Batch{Tick: 1},
		},
		{
			name: "Batch with commands",
			batch: types.Batch{
				Tick: 100,
				Commands: []types.Command{
					types.NewSystemCommand(types.CommandTypePeerJoined, 1, 3),
					{PlayerID: 2, Sequence: 5, Type: types.CommandTypePlayer, Payload: []byte("move 10 20")},
					{PlayerID: 3, Sequence: 1, Type: types.CommandTypePlayer},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := SerializeBatch(tt.batch)
			m, err := DeserializeMessage(body)
			require.NoError(t, err)
			assert.Equal(t, KindBatch, m.Kind)

			got, err := DeserializeBatch(m.Payload)
			require.NoError(t, err)
			assert.Equal(t, tt.batch, got)
		})
	}
}

func TestSerializeBatch_Deterministic(t *testing.T) {
	b := types.Batch{
		Tick: 9,
		Commands: []types.Command{
			{PlayerID: 1, Sequence: 2, Payload: []byte{1, 2, 3}},
			{PlayerID: 4, Sequence: 7},
		},
	}
	assert.Equal(t, SerializeBatch(b), SerializeBatch(b.Clone()))
}

func TestSerializeDeserializeWelcome(t *testing.T) {
	welcome := &Welcome{
		PlayerID:    3,
		SessionID:   "6f1c2a9e-0000-4000-8000-000000000001",
		CurrentTick: 12,
		Batches: []types.Batch{
			{Tick: 11},
			{Tick: 12, Commands: []types.Command{{PlayerID: 2, Sequence: 1, Payload: []byte("x")}}},
		},
		Peers: []uint32{1, 2, 3},
	}

	m, err := DeserializeMessage(SerializeWelcome(welcome))
	require.NoError(t, err)
	require.Equal(t, KindWelcome, m.Kind)

	got, err := DeserializeWelcome(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, welcome, got)
}

func TestSerializeDeserializeControlMessages(t *testing.T) {
	join := &Join{PlayerID: 2, LastTick: 40, Token: "secret", Role: types.RoleFollower}
	m, err := DeserializeMessage(SerializeJoin(join))
	require.NoError(t, err)
	assert.Equal(t, KindJoin, m.Kind)
	gotJoin, err := DeserializeJoin(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, join, gotJoin)

	hb := &Heartbeat{Tick: 7, SentAt: 1700000000000, EchoSentAt: 1699999999990, EchoHeld: 3}
	m, err = DeserializeMessage(SerializeHeartbeat(hb))
	require.NoError(t, err)
	assert.Equal(t, KindHeartbeat, m.Kind)
	gotHB, err := DeserializeHeartbeat(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, hb, gotHB)

	m, err = DeserializeMessage(SerializeResyncRequest(&ResyncRequest{FromTick: 33}))
	require.NoError(t, err)
	assert.Equal(t, KindResyncRequest, m.Kind)
	gotResync, err := DeserializeResyncRequest(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(33), gotResync.FromTick)

	m, err = DeserializeMessage(SerializePeerLeft(&PeerLeft{PlayerID: 4, Tick: 90}))
	require.NoError(t, err)
	assert.Equal(t, KindPeerLeft, m.Kind)
	gotLeft, err := DeserializePeerLeft(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, &PeerLeft{PlayerID: 4, Tick: 90}, gotLeft)

	m, err = DeserializeMessage(SerializeReject(&Reject{Reason: "session full"}))
	require.NoError(t, err)
	assert.Equal(t, KindReject, m.Kind)
	gotReject, err := DeserializeReject(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, "session full", gotReject.Reason)

	commands := &Commands{Commands: []types.Command{{PlayerID: 2, Sequence: 5, Payload: []byte("build")}}}
	m, err = DeserializeMessage(SerializeCommands(commands))
	require.NoError(t, err)
	assert.Equal(t, KindCommands, m.Kind)
	gotCommands, err := DeserializeCommands(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, commands, gotCommands)
}

func TestDeserialize_Malformed(t *testing.T) {
	_, err := DeserializeMessage(nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = DeserializeBatch([]byte{1, 2})
	assert.Error(t, err)

	_, err = DeserializeWelcome([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0})
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "RESYNC_REQUEST", KindResyncRequest.String())
	assert.Equal(t, "KIND(42)", Kind(42).String())
}
