package signaling

import (
	"encoding/json"
	"errors"
)

// Message is the envelope for every frame exchanged over the websocket, in
// both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types (client to server).
const (
	MessageTypeJoinRoom     = "join-room"
	MessageTypeOffer        = "offer"
	MessageTypeAnswer       = "answer"
	MessageTypeICECandidate = "ice-candidate"
)

// Outbound message types (server to client). Offer, answer and ICE candidate
// keep their inbound names.
const (
	MessageTypeConnected     = "connected"
	MessageTypeUserJoined    = "user-joined"
	MessageTypeExistingUsers = "existing-users"
	MessageTypeUserLeft      = "user-left"
	MessageTypeError         = "error"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// JoinRoomPayload is sent by a client to enter a room.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// SignalPayload carries one of offer, answer or candidate, addressed to a
// single connection.
type SignalPayload struct {
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	TargetUserID ConnID          `json:"targetUserId"`
}

// RelayedSignal is what the target of a signal receives.
type RelayedSignal struct {
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	FromUserID ConnID          `json:"fromUserId"`
	// FromUserName is nil when the sender never joined a room. An empty
	// name is still sent.
	FromUserName *string `json:"fromUserName,omitempty"`
}

// UserInfo describes a room member in presence events.
type UserInfo struct {
	UserID   ConnID `json:"userId"`
	UserName string `json:"userName"`
}

// ConnectedPayload tells a client its own identity.
type ConnectedPayload struct {
	UserID ConnID `json:"userId"`
}

// ErrorPayload reports a rejected message back to its sender.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(t string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// mustMessage is NewMessage for payload types that always marshal.
func mustMessage(t string, payload any) *Message {
	msg, err := NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// DecodePayload unmarshals the payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrMalformedMessage
	}
	return json.Unmarshal(m.Payload, v)
}
