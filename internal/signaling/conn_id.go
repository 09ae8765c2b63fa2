package signaling

import "github.com/google/uuid"

// ConnID identifies one live websocket connection for its whole lifetime.
// It is compared by value and never derived from the transport handle.
type ConnID string

// NewConnID returns a fresh random identifier.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

func (id ConnID) String() string {
	return string(id)
}
