package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayOfferAcrossRooms(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "room-a", "Alice")
	l.Join(c2, "room-b", "Bob")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}`)
	require.True(t, relay.Forward(SignalOffer, offer, c2, c1))

	msgs := rec2.ofType(MessageTypeOffer)
	require.Len(t, msgs, 1)
	got := decode[RelayedSignal](t, msgs[0])
	assert.Equal(t, c1, got.FromUserID)
	require.NotNil(t, got.FromUserName)
	assert.Equal(t, "Alice", *got.FromUserName)
	assert.JSONEq(t, string(offer), string(got.Offer))
	assert.Empty(t, got.Answer)
	assert.Empty(t, got.Candidate)
}

func TestRelayAnswerAndCandidate(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "r", "Alice")
	l.Join(c2, "r", "Bob")

	answer := json.RawMessage(`{"type":"answer","sdp":"x"}`)
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	require.True(t, relay.Forward(SignalAnswer, answer, c2, c1))
	require.True(t, relay.Forward(SignalICECandidate, candidate, c2, c1))

	a := decode[RelayedSignal](t, rec2.ofType(MessageTypeAnswer)[0])
	assert.JSONEq(t, string(answer), string(a.Answer))
	assert.Equal(t, c1, a.FromUserID)
	assert.Nil(t, a.FromUserName, "only offers carry the sender name")

	c := decode[RelayedSignal](t, rec2.ofType(MessageTypeICECandidate)[0])
	assert.JSONEq(t, string(candidate), string(c.Candidate))
	assert.Equal(t, c1, c.FromUserID)
}

func TestRelayWireShape(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "r", "Alice")

	relay.Forward(SignalOffer, json.RawMessage(`{"sdp":"s"}`), c2, c1)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec2.ofType(MessageTypeOffer)[0].Payload, &raw))
	assert.ElementsMatch(t, []string{"offer", "fromUserId", "fromUserName"}, keys(raw))
}

func TestRelayUnknownTargetIsDropped(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, rec1 := connect(l)
	l.Join(c1, "r", "Alice")
	rec1.reset()

	for _, kind := range []SignalKind{SignalOffer, SignalAnswer, SignalICECandidate} {
		assert.False(t, relay.Forward(kind, json.RawMessage(`{}`), "gone", c1))
	}
	assert.Empty(t, rec1.msgs)
}

func TestRelayToDisconnectedTarget(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Disconnect(c2)

	assert.False(t, relay.Forward(SignalOffer, json.RawMessage(`{}`), c2, c1))
	assert.Empty(t, rec2.msgs)
}

func TestRelayFromUnjoinedSenderOmitsName(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)

	require.True(t, relay.Forward(SignalOffer, json.RawMessage(`{}`), c2, c1))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec2.ofType(MessageTypeOffer)[0].Payload, &raw))
	assert.NotContains(t, raw, "fromUserName")
}

func TestRelayOfferFromEmptyNameKeepsField(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "r", "")

	require.True(t, relay.Forward(SignalOffer, json.RawMessage(`{}`), c2, c1))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec2.ofType(MessageTypeOffer)[0].Payload, &raw))
	require.Contains(t, raw, "fromUserName")
	assert.JSONEq(t, `""`, string(raw["fromUserName"]))
}

func TestRelayToSelfIsDropped(t *testing.T) {
	l, reg, _ := newTestLifecycle()
	relay := NewRelay(l, reg)
	c1, rec1 := connect(l)
	l.Join(c1, "r", "Alice")
	rec1.reset()

	for _, kind := range []SignalKind{SignalOffer, SignalAnswer, SignalICECandidate} {
		assert.False(t, relay.Forward(kind, json.RawMessage(`{"sdp":"x"}`), c1, c1))
	}
	assert.Empty(t, rec1.msgs)
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
