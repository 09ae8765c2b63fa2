package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig holds the per-connection websocket limits.
type ClientConfig struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64

	// Outbound messages queued before the client is considered too slow.
	SendBuffer int
}

// DefaultClientConfig returns limits suited to SDP-sized signaling frames.
func DefaultClientConfig() ClientConfig {
	pongWait := 60 * time.Second
	return ClientConfig{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

// Client is a wrapper for a single websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	cfg    ClientConfig
	logger *slog.Logger

	id ConnID

	// send is a buffered channel for all outbound messages. WritePump is its
	// only reader.
	send chan *Message

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := NewConnID()
	return &Client{
		hub:    hub,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("conn", id, "remote_addr", conn.RemoteAddr().String()),
		id:     id,
		send:   make(chan *Message, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Start registers the client with the hub and runs its read and write pumps
// in their own goroutines.
func (c *Client) Start() {
	c.hub.Register(c.id, c)
	c.logger.Info("client connected")

	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ID() ConnID {
	return c.id
}

// Send queues msg without blocking. A client whose queue is full is closed:
// it cannot keep up and would otherwise stall whoever is sending to it.
func (c *Client) Send(msg *Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, closing slow client")
		c.Close()
		return false
	}
}

// Close stops the write pump, which in turn closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c.id)
		c.Close()
		c.conn.Close()
		c.logger.Info("client disconnected")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("undecodable frame", "err", err)
			c.Send(mustMessage(MessageTypeError, ErrorPayload{Message: ErrMalformedMessage.Error()}))
			continue
		}

		if err := c.hub.Dispatch(c.id, &msg); err != nil {
			c.logger.Debug("message rejected", "type", msg.Type, "err", err)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("websocket write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
