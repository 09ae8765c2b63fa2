package peer

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ChatLabel is the label of the data channel carrying chat frames.
const ChatLabel = "chat"

// Frame types on the chat data channel.
const (
	FrameTypeChat = "chat"
)

// Frame is the envelope of every data channel message.
type Frame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// ChatPayload is one chat line.
type ChatPayload struct {
	Text   string `msgpack:"text"`
	SentAt int64  `msgpack:"sentAt"` // unix millis
}

// DecodePayload decodes the frame payload into the provided struct
func (f Frame) DecodePayload(v any) error {
	return msgpack.Unmarshal(f.Payload, v)
}

// NewFrame creates a new Frame with the given type and payload
func NewFrame(t string, payload any) (Frame, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: b}, nil
}

func encodeChat(text string, at time.Time) ([]byte, error) {
	f, err := NewFrame(FrameTypeChat, ChatPayload{Text: text, SentAt: at.UnixMilli()})
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(f)
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}
