package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(h *Hub) (ConnID, *recorder) {
	id := NewConnID()
	r := &recorder{}
	h.Register(id, r)
	return id, r
}

func send(t *testing.T, h *Hub, id ConnID, typ string, payload any) error {
	t.Helper()
	msg, err := NewMessage(typ, payload)
	require.NoError(t, err)
	return h.Dispatch(id, msg)
}

func TestHubRegisterAnnouncesIdentity(t *testing.T) {
	h := NewHub(discardLogger())
	id, rec := register(h)

	msgs := rec.ofType(MessageTypeConnected)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, decode[ConnectedPayload](t, msgs[0]).UserID)
	assert.Equal(t, Stats{Connections: 1}, h.Stats())
}

func TestHubJoinAndSignal(t *testing.T) {
	h := NewHub(discardLogger())
	alice, _ := register(h)
	bob, bobRec := register(h)

	require.NoError(t, send(t, h, alice, MessageTypeJoinRoom, JoinRoomPayload{RoomID: "room-1", UserName: "Alice"}))
	require.NoError(t, send(t, h, bob, MessageTypeJoinRoom, JoinRoomPayload{RoomID: "room-1", UserName: "Bob"}))
	require.NoError(t, send(t, h, alice, MessageTypeOffer, map[string]any{
		"offer":        map[string]string{"type": "offer", "sdp": "abc"},
		"targetUserId": bob,
	}))

	offers := bobRec.ofType(MessageTypeOffer)
	require.Len(t, offers, 1)
	got := decode[RelayedSignal](t, offers[0])
	assert.Equal(t, alice, got.FromUserID)
	require.NotNil(t, got.FromUserName)
	assert.Equal(t, "Alice", *got.FromUserName)
	assert.JSONEq(t, `{"type":"offer","sdp":"abc"}`, string(got.Offer))

	assert.Equal(t, Stats{Rooms: 1, Connections: 2, Users: 2}, h.Stats())

	h.Unregister(alice)
	h.Unregister(bob)
	assert.Equal(t, Stats{}, h.Stats())
}

func TestHubSignalToUnknownTargetIsSilent(t *testing.T) {
	h := NewHub(discardLogger())
	alice, rec := register(h)
	rec.reset()

	err := send(t, h, alice, MessageTypeICECandidate, map[string]any{
		"candidate":    map[string]any{"candidate": "x"},
		"targetUserId": "nobody",
	})

	assert.NoError(t, err)
	assert.Empty(t, rec.msgs)
}

func TestHubRejectsMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"join without payload", &Message{Type: MessageTypeJoinRoom}},
		{"join without room", &Message{Type: MessageTypeJoinRoom, Payload: json.RawMessage(`{"userName":"x"}`)}},
		{"join with wrong types", &Message{Type: MessageTypeJoinRoom, Payload: json.RawMessage(`{"roomId":7}`)}},
		{"offer without target", &Message{Type: MessageTypeOffer, Payload: json.RawMessage(`{"offer":{}}`)}},
		{"answer without answer", &Message{Type: MessageTypeAnswer, Payload: json.RawMessage(`{"targetUserId":"b"}`)}},
		{"candidate under wrong key", &Message{Type: MessageTypeICECandidate, Payload: json.RawMessage(`{"offer":{},"targetUserId":"b"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(discardLogger())
			id, rec := register(h)
			peer, peerRec := register(h)
			require.NoError(t, send(t, h, peer, MessageTypeJoinRoom, JoinRoomPayload{RoomID: "r"}))
			peerRec.reset()

			err := h.Dispatch(id, tt.msg)

			assert.ErrorIs(t, err, ErrMalformedMessage)
			assert.Len(t, rec.ofType(MessageTypeError), 1)
			assert.Empty(t, peerRec.msgs)
			assert.Equal(t, Stats{Rooms: 1, Connections: 2, Users: 1}, h.Stats())
		})
	}
}

func TestHubRejectsUnknownType(t *testing.T) {
	h := NewHub(discardLogger())
	id, rec := register(h)

	err := h.Dispatch(id, &Message{Type: "create_room"})

	assert.ErrorIs(t, err, ErrUnknownMessageType)
	errs := rec.ofType(MessageTypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, decode[ErrorPayload](t, errs[0]).Message, "create_room")
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(discardLogger())
	closable := &closingRecorder{}
	h.Register(NewConnID(), closable)
	register(h) // plain recorder has no Close

	assert.Equal(t, 1, h.CloseAll())
	assert.Equal(t, 1, closable.closed)
}
