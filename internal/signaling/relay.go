package signaling

import (
	"encoding/json"
	"fmt"
)

// SignalKind is one of the three negotiation messages the relay forwards.
type SignalKind string

const (
	SignalOffer        SignalKind = MessageTypeOffer
	SignalAnswer       SignalKind = MessageTypeAnswer
	SignalICECandidate SignalKind = MessageTypeICECandidate
)

// PeerLookup resolves a connection ID to a live sender.
type PeerLookup interface {
	Peer(id ConnID) (Sender, bool)
}

// Relay forwards negotiation payloads from one connection to another. It
// keeps no state of its own.
type Relay struct {
	peers PeerLookup
	users *Registry
}

func NewRelay(peers PeerLookup, users *Registry) *Relay {
	return &Relay{peers: peers, users: users}
}

// Forward delivers payload to target, tagged with the sender's identity.
// Offers also carry the sender's display name when it has joined a room.
// A target that is not live, or is the sender itself, is dropped silently and
// Forward returns false.
func (r *Relay) Forward(kind SignalKind, payload json.RawMessage, target, from ConnID) bool {
	if target == from {
		return false
	}
	s, ok := r.peers.Peer(target)
	if !ok {
		return false
	}

	sig := RelayedSignal{FromUserID: from}
	switch kind {
	case SignalOffer:
		sig.Offer = payload
		if u, ok := r.users.Get(from); ok {
			name := u.UserName
			sig.FromUserName = &name
		}
	case SignalAnswer:
		sig.Answer = payload
	case SignalICECandidate:
		sig.Candidate = payload
	default:
		panic(fmt.Sprintf("signaling: unknown signal kind %q", kind))
	}

	return s.Send(mustMessage(string(kind), sig))
}

// payloadFor picks the field of p that belongs to kind.
func (p *SignalPayload) payloadFor(kind SignalKind) json.RawMessage {
	switch kind {
	case SignalOffer:
		return p.Offer
	case SignalAnswer:
		return p.Answer
	case SignalICECandidate:
		return p.Candidate
	}
	return nil
}
