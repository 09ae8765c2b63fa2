// Package peer runs the terminal client's WebRTC mesh: one peer connection
// per room member, each carrying a chat data channel.
package peer

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
)

// Signaler relays session descriptions and candidates through the relay.
type Signaler interface {
	SendOffer(target signaling.ConnID, offer any) error
	SendAnswer(target signaling.ConnID, answer any) error
	SendCandidate(target signaling.ConnID, candidate any) error
}

type EventKind int

const (
	EventPeerOpen EventKind = iota
	EventPeerClosed
	EventChat
	EventError
)

// Event reports something that happened on the mesh.
type Event struct {
	Kind EventKind
	Peer signaling.ConnID
	Name string
	Text string
	At   time.Time
	Err  error
}

// Info describes one remote member for display.
type Info struct {
	ID    signaling.ConnID
	Name  string
	State string
	Open  bool
}

type remote struct {
	id   signaling.ConnID
	name string
	pc   *pion.PeerConnection

	mu        sync.Mutex
	dc        *pion.DataChannel
	remoteSet bool
	pending   []pion.ICECandidateInit
}

// Mesh owns every peer connection of one room session.
type Mesh struct {
	cfg      *config.Config
	api      *pion.API
	signaler Signaler
	logger   *slog.Logger

	mu     sync.Mutex
	peers  map[signaling.ConnID]*remote
	early  map[signaling.ConnID][]pion.ICECandidateInit
	closed bool

	events chan Event
	done   chan struct{}
}

// NewMesh creates an empty mesh.
func NewMesh(cfg *config.Config, signaler Signaler, logger *slog.Logger) *Mesh {
	return newMesh(cfg, pion.NewAPI(), signaler, logger)
}

func newMesh(cfg *config.Config, api *pion.API, signaler Signaler, logger *slog.Logger) *Mesh {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mesh{
		cfg:      cfg,
		api:      api,
		signaler: signaler,
		logger:   logger,
		peers:    make(map[signaling.ConnID]*remote),
		early:    make(map[signaling.ConnID][]pion.ICECandidateInit),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
}

// Events delivers mesh events until Close.
func (m *Mesh) Events() <-chan Event {
	return m.events
}

func (m *Mesh) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case m.events <- e:
	case <-m.done:
	}
}

func (m *Mesh) configuration() pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := m.cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := m.cfg.GetTURNServers()
	if turnServers != nil {
		username, password := m.cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (m.cfg.ForceRelay || config.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// newRemote creates and registers the peer connection for id.
func (m *Mesh) newRemote(id signaling.ConnID, name string) (*remote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrMeshClosed
	}
	if r, ok := m.peers[id]; ok {
		return r, nil
	}

	pc, err := m.api.NewPeerConnection(m.configuration())
	if err != nil {
		return nil, NewError("create peer connection", id, err)
	}
	r := &remote{id: id, name: name, pc: pc, pending: m.early[id]}
	m.peers[id] = r
	delete(m.early, id)

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := m.signaler.SendCandidate(id, c.ToJSON()); err != nil {
			m.logger.Debug("send candidate failed", "peer", id, "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		m.logger.Debug("peer connection state", "peer", id, "state", state.String())
		if state == pion.PeerConnectionStateFailed {
			m.emit(Event{Kind: EventError, Peer: id, Name: name, Err: NewError("connect", id, ErrPeerDisconnected)})
			m.Remove(id)
		}
	})

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ChatLabel {
			m.logger.Debug("ignoring data channel", "peer", id, "label", dc.Label())
			return
		}
		m.attach(r, dc)
	})

	return r, nil
}

// attach wires a chat data channel to r.
func (m *Mesh) attach(r *remote, dc *pion.DataChannel) {
	r.mu.Lock()
	r.dc = dc
	r.mu.Unlock()

	dc.OnOpen(func() {
		m.emit(Event{Kind: EventPeerOpen, Peer: r.id, Name: r.name})
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		f, err := decodeFrame(msg.Data)
		if err != nil {
			m.emit(Event{Kind: EventError, Peer: r.id, Name: r.name, Err: NewError("decode frame", r.id, err)})
			return
		}
		switch f.Type {
		case FrameTypeChat:
			var p ChatPayload
			if err := f.DecodePayload(&p); err != nil {
				m.emit(Event{Kind: EventError, Peer: r.id, Name: r.name, Err: NewError("decode chat", r.id, err)})
				return
			}
			m.emit(Event{Kind: EventChat, Peer: r.id, Name: r.name, Text: p.Text, At: time.UnixMilli(p.SentAt)})
		default:
			m.logger.Debug("ignoring frame", "peer", r.id, "type", f.Type)
		}
	})
}

// Call starts a connection to an existing member. The newcomer offers, so
// Call is used for every member listed in existing-users.
func (m *Mesh) Call(id signaling.ConnID, name string) error {
	r, err := m.newRemote(id, name)
	if err != nil {
		return err
	}

	ordered := true
	dc, err := r.pc.CreateDataChannel(ChatLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return NewError("create data channel", id, err)
	}
	m.attach(r, dc)

	offer, err := r.pc.CreateOffer(nil)
	if err != nil {
		return NewError("create offer", id, err)
	}
	if err := r.pc.SetLocalDescription(offer); err != nil {
		return NewError("set local description", id, err)
	}

	if err := m.signaler.SendOffer(id, r.pc.LocalDescription()); err != nil {
		return NewError("send offer", id, err)
	}
	return nil
}

// HandleOffer answers an offer from a newcomer.
func (m *Mesh) HandleOffer(from signaling.ConnID, name string, data json.RawMessage) error {
	desc, err := parseDescription(data, pion.SDPTypeOffer)
	if err != nil {
		return NewError("handle offer", from, err)
	}

	r, err := m.newRemote(from, name)
	if err != nil {
		return err
	}
	if err := m.setRemote(r, desc); err != nil {
		return err
	}

	answer, err := r.pc.CreateAnswer(nil)
	if err != nil {
		return NewError("create answer", from, err)
	}
	if err := r.pc.SetLocalDescription(answer); err != nil {
		return NewError("set local description", from, err)
	}

	if err := m.signaler.SendAnswer(from, r.pc.LocalDescription()); err != nil {
		return NewError("send answer", from, err)
	}
	return nil
}

// HandleAnswer completes a connection started by Call.
func (m *Mesh) HandleAnswer(from signaling.ConnID, data json.RawMessage) error {
	desc, err := parseDescription(data, pion.SDPTypeAnswer)
	if err != nil {
		return NewError("handle answer", from, err)
	}

	r, ok := m.lookup(from)
	if !ok {
		return NewError("handle answer", from, ErrUnknownPeer)
	}
	return m.setRemote(r, desc)
}

// HandleCandidate adds a remote ICE candidate, holding it back until the
// peer connection exists and its remote description is known.
func (m *Mesh) HandleCandidate(from signaling.ConnID, data json.RawMessage) error {
	var c pion.ICECandidateInit
	if err := json.Unmarshal(data, &c); err != nil {
		return NewError("parse ICE candidate", from, err)
	}

	m.mu.Lock()
	r, ok := m.peers[from]
	if !ok {
		// candidates can overtake the offer they belong to
		if !m.closed {
			m.early[from] = append(m.early[from], c)
		}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	r.mu.Lock()
	if !r.remoteSet {
		r.pending = append(r.pending, c)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.pc.AddICECandidate(c); err != nil {
		return NewError("add ICE candidate", from, err)
	}
	return nil
}

func (m *Mesh) setRemote(r *remote, desc pion.SessionDescription) error {
	if err := r.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", r.id, err)
	}

	r.mu.Lock()
	r.remoteSet = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, c := range pending {
		if err := r.pc.AddICECandidate(c); err != nil {
			return NewError("add ICE candidate", r.id, err)
		}
	}
	return nil
}

func parseDescription(data json.RawMessage, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return desc, err
	}
	if desc.Type != want || desc.SDP == "" {
		return desc, WrapError("parse description", "", ErrUnexpectedSignal, desc.Type.String())
	}
	return desc, nil
}

func (m *Mesh) lookup(id signaling.ConnID) (*remote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.peers[id]
	return r, ok
}

// Remove closes the connection to id, typically after user-left.
func (m *Mesh) Remove(id signaling.ConnID) {
	m.mu.Lock()
	r, ok := m.peers[id]
	delete(m.peers, id)
	delete(m.early, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := r.pc.Close(); err != nil {
		m.logger.Debug("close peer connection", "peer", id, "error", err)
	}
	m.emit(Event{Kind: EventPeerClosed, Peer: id, Name: r.name})
}

// Broadcast sends a chat line to every member whose channel is open and
// returns how many received it.
func (m *Mesh) Broadcast(text string) (int, error) {
	data, err := encodeChat(text, time.Now())
	if err != nil {
		return 0, NewError("encode chat", "", err)
	}

	m.mu.Lock()
	targets := make([]*remote, 0, len(m.peers))
	for _, r := range m.peers {
		targets = append(targets, r)
	}
	m.mu.Unlock()

	sent := 0
	var firstErr error
	for _, r := range targets {
		r.mu.Lock()
		dc := r.dc
		r.mu.Unlock()

		if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
			continue
		}
		if err := dc.Send(data); err != nil {
			if firstErr == nil {
				firstErr = NewError("send chat", r.id, err)
			}
			continue
		}
		sent++
	}

	if sent == 0 && firstErr == nil {
		return 0, ErrNoOpenChannels
	}
	return sent, firstErr
}

// Peers lists remote members ordered by name.
func (m *Mesh) Peers() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.peers))
	for _, r := range m.peers {
		r.mu.Lock()
		open := r.dc != nil && r.dc.ReadyState() == pion.DataChannelStateOpen
		r.mu.Unlock()
		out = append(out, Info{ID: r.id, Name: r.name, State: r.pc.ConnectionState().String(), Open: open})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close tears down every peer connection. Events is not closed; callers stop
// reading once Close returns.
func (m *Mesh) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	peers := m.peers
	m.peers = make(map[signaling.ConnID]*remote)
	m.early = make(map[signaling.ConnID][]pion.ICECandidateInit)
	close(m.done)
	m.mu.Unlock()

	for id, r := range peers {
		if err := r.pc.Close(); err != nil {
			m.logger.Debug("close peer connection", "peer", id, "error", err)
		}
	}
}
