// Package roomclient is the terminal client's side of the signaling
// websocket.
package roomclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndreyRyab/mama-talk/internal/dns"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	incoming chan *signaling.Message
	outgoing chan *signaling.Message
	done     chan struct{}

	closeOnce sync.Once
}

// Dial connects to the relay's websocket endpoint. A nil resolver dials with
// the system resolver only.
func Dial(ctx context.Context, serverURL string, resolver *dns.Resolver, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := *websocket.DefaultDialer
	if resolver != nil {
		dialer.NetDialContext = resolver.DialContext
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		logger:   logger.With("server", u.Host),
		incoming: make(chan *signaling.Message, 16),
		outgoing: make(chan *signaling.Message, 16),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("signaling read failed", "error", err)
			}
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("signaling write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues a message for the relay.
func (c *Client) SendMessage(msg *signaling.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) send(msgType string, payload any) error {
	msg, err := signaling.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	return c.SendMessage(msg)
}

// JoinRoom asks the relay to place this connection in roomID.
func (c *Client) JoinRoom(roomID, userName string) error {
	return c.send(signaling.MessageTypeJoinRoom, signaling.JoinRoomPayload{RoomID: roomID, UserName: userName})
}

// SendOffer relays an SDP offer to target.
func (c *Client) SendOffer(target signaling.ConnID, offer any) error {
	return c.sendSignal(signaling.MessageTypeOffer, target, offer)
}

// SendAnswer relays an SDP answer to target.
func (c *Client) SendAnswer(target signaling.ConnID, answer any) error {
	return c.sendSignal(signaling.MessageTypeAnswer, target, answer)
}

// SendCandidate relays an ICE candidate to target.
func (c *Client) SendCandidate(target signaling.ConnID, candidate any) error {
	return c.sendSignal(signaling.MessageTypeICECandidate, target, candidate)
}

func (c *Client) sendSignal(msgType string, target signaling.ConnID, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}

	p := signaling.SignalPayload{TargetUserID: target}
	switch msgType {
	case signaling.MessageTypeOffer:
		p.Offer = raw
	case signaling.MessageTypeAnswer:
		p.Answer = raw
	case signaling.MessageTypeICECandidate:
		p.Candidate = raw
	}
	return c.send(msgType, p)
}

// Incoming returns the channel for receiving messages. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *signaling.Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
