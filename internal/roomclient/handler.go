package roomclient

import (
	"encoding/json"
	"fmt"

	"github.com/AndreyRyab/mama-talk/internal/signaling"
)

// Signal is an offer, answer or ICE candidate relayed from another member.
type Signal struct {
	Type string
	From signaling.ConnID
	// FromName is only set on offers.
	FromName string
	// Data is the raw SDP description or ICE candidate.
	Data json.RawMessage
}

// Handler routes incoming signaling messages to appropriate channels.
type Handler struct {
	Connected     chan signaling.ConnID
	ExistingUsers chan []signaling.UserInfo
	UserJoined    chan signaling.UserInfo
	UserLeft      chan signaling.UserInfo
	Signal        chan *Signal
	Error         chan string
}

// NewHandler creates a new message handler.
func NewHandler() *Handler {
	return &Handler{
		Connected:     make(chan signaling.ConnID, 1),
		ExistingUsers: make(chan []signaling.UserInfo, 1),
		UserJoined:    make(chan signaling.UserInfo, 16),
		UserLeft:      make(chan signaling.UserInfo, 16),
		Signal:        make(chan *Signal, 64),
		Error:         make(chan string, 4),
	}
}

// Run routes messages from in until it is closed, then closes every handler
// channel.
func (h *Handler) Run(in <-chan *signaling.Message) {
	defer h.close()

	for msg := range in {
		if err := h.route(msg); err != nil {
			h.Error <- err.Error()
		}
	}
}

func (h *Handler) route(msg *signaling.Message) error {
	switch msg.Type {
	case signaling.MessageTypeConnected:
		var p signaling.ConnectedPayload
		if err := msg.DecodePayload(&p); err != nil {
			return fmt.Errorf("parse %s: %w", msg.Type, err)
		}
		h.Connected <- p.UserID

	case signaling.MessageTypeExistingUsers:
		var users []signaling.UserInfo
		if err := msg.DecodePayload(&users); err != nil {
			return fmt.Errorf("parse %s: %w", msg.Type, err)
		}
		h.ExistingUsers <- users

	case signaling.MessageTypeUserJoined, signaling.MessageTypeUserLeft:
		var u signaling.UserInfo
		if err := msg.DecodePayload(&u); err != nil {
			return fmt.Errorf("parse %s: %w", msg.Type, err)
		}
		if msg.Type == signaling.MessageTypeUserJoined {
			h.UserJoined <- u
		} else {
			h.UserLeft <- u
		}

	case signaling.MessageTypeOffer, signaling.MessageTypeAnswer, signaling.MessageTypeICECandidate:
		var p signaling.RelayedSignal
		if err := msg.DecodePayload(&p); err != nil {
			return fmt.Errorf("parse %s: %w", msg.Type, err)
		}
		s := &Signal{Type: msg.Type, From: p.FromUserID}
		if p.FromUserName != nil {
			s.FromName = *p.FromUserName
		}
		switch msg.Type {
		case signaling.MessageTypeOffer:
			s.Data = p.Offer
		case signaling.MessageTypeAnswer:
			s.Data = p.Answer
		default:
			s.Data = p.Candidate
		}
		h.Signal <- s

	case signaling.MessageTypeError:
		var p signaling.ErrorPayload
		if err := msg.DecodePayload(&p); err != nil {
			return fmt.Errorf("unknown error from server")
		}
		h.Error <- p.Message

	default:
		// newer relays may add events; ignore what we don't know
	}
	return nil
}

func (h *Handler) close() {
	close(h.Connected)
	close(h.ExistingUsers)
	close(h.UserJoined)
	close(h.UserLeft)
	close(h.Signal)
	close(h.Error)
}
