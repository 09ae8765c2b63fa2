package signaling

import (
	"fmt"
	"log/slog"
)

// Hub is the entry point the transport talks to. It hands out connection
// identities and routes every inbound message to the lifecycle manager or
// the relay.
type Hub struct {
	registry  *Registry
	directory *Directory
	lifecycle *Lifecycle
	relay     *Relay
	logger    *slog.Logger
}

// NewHub creates a Hub with empty state.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry()
	directory := NewDirectory()
	lifecycle := NewLifecycle(registry, directory, logger)

	return &Hub{
		registry:  registry,
		directory: directory,
		lifecycle: lifecycle,
		relay:     NewRelay(lifecycle, registry),
		logger:    logger,
	}
}

// Register records a freshly opened connection and tells the client its
// identity.
func (h *Hub) Register(id ConnID, s Sender) {
	h.lifecycle.Connect(id, s)
	s.Send(mustMessage(MessageTypeConnected, ConnectedPayload{UserID: id}))
	h.logger.Debug("client registered", "conn", id)
}

// Unregister runs the disconnect cleanup for id.
func (h *Hub) Unregister(id ConnID) {
	h.lifecycle.Disconnect(id)
	h.logger.Debug("client unregistered", "conn", id)
}

// Dispatch handles one inbound message from id. A malformed or unknown
// message is answered with an error event to its sender and reported to the
// caller; it never touches shared state.
func (h *Hub) Dispatch(id ConnID, msg *Message) error {
	switch msg.Type {
	case MessageTypeJoinRoom:
		var p JoinRoomPayload
		if err := msg.DecodePayload(&p); err != nil {
			return h.reject(id, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Type, err))
		}
		if p.RoomID == "" {
			return h.reject(id, fmt.Errorf("%w: %s: roomId is required", ErrMalformedMessage, msg.Type))
		}
		h.lifecycle.Join(id, p.RoomID, p.UserName)

	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate:
		kind := SignalKind(msg.Type)
		var p SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			return h.reject(id, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Type, err))
		}
		payload := p.payloadFor(kind)
		if p.TargetUserID == "" || len(payload) == 0 {
			return h.reject(id, fmt.Errorf("%w: %s: payload and targetUserId are required", ErrMalformedMessage, msg.Type))
		}
		if !h.relay.Forward(kind, payload, p.TargetUserID, id) {
			h.logger.Debug("signal dropped", "kind", kind, "from", id, "target", p.TargetUserID)
		}

	default:
		return h.reject(id, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
	}

	return nil
}

func (h *Hub) reject(id ConnID, err error) error {
	if s, ok := h.lifecycle.Peer(id); ok {
		s.Send(mustMessage(MessageTypeError, ErrorPayload{Message: err.Error()}))
	}
	return err
}

// CloseAll closes every live connection whose sender can be closed and
// returns how many were. Each one then leaves through the usual disconnect
// path, so rooms see user-left as they drain.
func (h *Hub) CloseAll() int {
	n := 0
	for _, s := range h.lifecycle.Senders() {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
			n++
		}
	}
	return n
}

// Stats reports current room and connection counts.
func (h *Hub) Stats() Stats {
	return h.lifecycle.Stats()
}
