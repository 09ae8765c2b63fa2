package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/dns"
	"github.com/AndreyRyab/mama-talk/internal/peer"
	"github.com/AndreyRyab/mama-talk/internal/roomclient"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
	"github.com/AndreyRyab/mama-talk/internal/ui"
)

const (
	connectTimeout = 15 * time.Second
	joinTimeout    = 10 * time.Second
)

var errRelayClosed = errors.New("relay closed the connection")

// ConnectionContext holds everything needed for a relay connection
type ConnectionContext struct {
	Client  *roomclient.Client
	Handler *roomclient.Handler
	Config  *config.Config
	SelfID  signaling.ConnID
}

// NewConnectionContext dials the relay and waits for it to assign our
// connection ID.
func NewConnectionContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ConnectionContext, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := roomclient.Dial(ctx, cfg.WebSocketURL, dns.NewResolver(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Host(), err)
	}

	handler := roomclient.NewHandler()
	go handler.Run(client.Incoming())

	select {
	case id, ok := <-handler.Connected:
		if !ok {
			client.Close()
			return nil, errRelayClosed
		}
		return &ConnectionContext{Client: client, Handler: handler, Config: cfg, SelfID: id}, nil
	case <-ctx.Done():
		client.Close()
		return nil, fmt.Errorf("waiting for relay: %w", ctx.Err())
	}
}

// Join enters the room and returns the members already in it.
func (c *ConnectionContext) Join(ctx context.Context, roomID, userName string) ([]signaling.UserInfo, error) {
	if err := c.Client.JoinRoom(roomID, userName); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	select {
	case users, ok := <-c.Handler.ExistingUsers:
		if !ok {
			return nil, errRelayClosed
		}
		return users, nil
	case msg, ok := <-c.Handler.Error:
		if !ok {
			return nil, errRelayClosed
		}
		return nil, fmt.Errorf("relay rejected join: %s", msg)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for room members: %w", ctx.Err())
	}
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// roomSession ties the relay connection, the peer mesh and the chat screen
// together for one room.
type roomSession struct {
	conn   *ConnectionContext
	mesh   *peer.Mesh
	chat   *ui.Chat
	logger *slog.Logger
}

func newRoomSession(conn *ConnectionContext, roomID, userName string, logger *slog.Logger) *roomSession {
	s := &roomSession{
		conn:   conn,
		mesh:   peer.NewMesh(conn.Config, conn.Client, logger),
		logger: logger,
	}
	s.chat = ui.NewChat(roomID, userName, s.send)
	return s
}

func (s *roomSession) send(text string) error {
	_, err := s.mesh.Broadcast(text)
	if errors.Is(err, peer.ErrNoOpenChannels) {
		return errors.New("nobody is connected yet")
	}
	return err
}

// run calls every existing member and blocks until the user leaves.
func (s *roomSession) run(ctx context.Context, existing []signaling.UserInfo) error {
	defer s.mesh.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pump(ctx)
	// chat.Post blocks until the program runs
	go s.callAll(existing)

	return s.chat.Run()
}

func (s *roomSession) callAll(members []signaling.UserInfo) {
	for _, u := range members {
		if err := s.mesh.Call(u.UserID, u.UserName); err != nil {
			s.post(ui.LineError, "", fmt.Sprintf("could not call %s: %v", u.UserName, err))
		}
	}
}

func (s *roomSession) pump(ctx context.Context) {
	h := s.conn.Handler
	joined, left, signals, relayErrs := h.UserJoined, h.UserLeft, h.Signal, h.Error
	events := s.mesh.Events()

	lost := func() {
		if joined == nil {
			return
		}
		joined, left, signals, relayErrs = nil, nil, nil, nil
		s.post(ui.LineError, "", "lost the relay; open chats keep working but nobody new can join")
	}

	for {
		select {
		case <-ctx.Done():
			s.chat.Quit()
			return

		case u, ok := <-joined:
			if !ok {
				lost()
				continue
			}
			s.post(ui.LineSystem, "", fmt.Sprintf("%s joined, connecting…", u.UserName))

		case u, ok := <-left:
			if !ok {
				lost()
				continue
			}
			s.mesh.Remove(u.UserID)
			s.post(ui.LineSystem, "", fmt.Sprintf("%s left", u.UserName))

		case sig, ok := <-signals:
			if !ok {
				lost()
				continue
			}
			if err := s.handleSignal(sig); err != nil {
				s.logger.Debug("signal rejected", "type", sig.Type, "from", sig.From, "error", err)
			}

		case msg, ok := <-relayErrs:
			if !ok {
				lost()
				continue
			}
			s.post(ui.LineError, "", "relay: "+msg)

		case ev := <-events:
			s.handleEvent(ev)
		}
	}
}

func (s *roomSession) handleSignal(sig *roomclient.Signal) error {
	switch sig.Type {
	case signaling.MessageTypeOffer:
		return s.mesh.HandleOffer(sig.From, sig.FromName, sig.Data)
	case signaling.MessageTypeAnswer:
		return s.mesh.HandleAnswer(sig.From, sig.Data)
	case signaling.MessageTypeICECandidate:
		return s.mesh.HandleCandidate(sig.From, sig.Data)
	}
	return peer.ErrUnexpectedSignal
}

func (s *roomSession) handleEvent(ev peer.Event) {
	switch ev.Kind {
	case peer.EventChat:
		s.chat.Post(ui.ChatLine{Kind: ui.LineChat, At: ev.At, From: ev.Name, Text: ev.Text})
	case peer.EventPeerOpen:
		s.post(ui.LineSystem, "", fmt.Sprintf("connected to %s", ev.Name))
		s.chat.SetMembers(openPeers(s.mesh.Peers()))
	case peer.EventPeerClosed:
		s.chat.SetMembers(openPeers(s.mesh.Peers()))
	case peer.EventError:
		s.post(ui.LineError, "", ev.Err.Error())
	}
}

func (s *roomSession) post(kind ui.LineKind, from, text string) {
	s.chat.Post(ui.ChatLine{Kind: kind, At: time.Now(), From: from, Text: text})
}

func openPeers(peers []peer.Info) int {
	n := 0
	for _, p := range peers {
		if p.Open {
			n++
		}
	}
	return n
}
