package signaling

import (
	"log/slog"
	"sync"
)

// UnknownUserName stands in for a member whose registry entry vanished
// between the directory read and the name lookup.
const UnknownUserName = "Unknown"

// Sender queues a message for delivery to one connection. Implementations
// must not block; false means the message was not queued.
type Sender interface {
	Send(msg *Message) bool
}

type outbound struct {
	to  Sender
	msg *Message
}

// Stats is a point-in-time view of the lifecycle state.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Users       int `json:"users"`
}

// Lifecycle keeps the Registry and the Directory consistent across join and
// disconnect, and owns the table of live connections.
//
// Composite operations run under mu. Outbound events are collected while
// holding it and delivered only after it is released.
type Lifecycle struct {
	mu sync.Mutex

	connsMu sync.RWMutex
	conns   map[ConnID]Sender

	registry  *Registry
	directory *Directory
	logger    *slog.Logger
}

func NewLifecycle(registry *Registry, directory *Directory, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		conns:     make(map[ConnID]Sender),
		registry:  registry,
		directory: directory,
		logger:    logger,
	}
}

// Connect records a live connection that has not joined any room yet.
func (l *Lifecycle) Connect(id ConnID, s Sender) {
	l.connsMu.Lock()
	l.conns[id] = s
	l.connsMu.Unlock()
}

// Peer returns the sender for a live connection.
func (l *Lifecycle) Peer(id ConnID) (Sender, bool) {
	l.connsMu.RLock()
	defer l.connsMu.RUnlock()
	s, ok := l.conns[id]
	return s, ok
}

// Join puts id into roomID under userName. The other members are told about
// the newcomer and the newcomer receives the list of the other members.
//
// A connection that already joined a room leaves it first. Join on a
// connection that is not live does nothing and returns false.
func (l *Lifecycle) Join(id ConnID, roomID, userName string) bool {
	l.mu.Lock()

	self, live := l.Peer(id)
	if !live {
		l.mu.Unlock()
		return false
	}

	var out []outbound
	if prev, ok := l.registry.Get(id); ok {
		out = l.leaveLocked(id, prev)
		l.logger.Info("user switched rooms", "conn", id, "from", prev.RoomID, "to", roomID)
	}

	l.registry.Set(id, roomID, userName)
	l.directory.Join(roomID, id)

	others := BroadcastTargets(l.directory.Members(roomID), id)

	joined := mustMessage(MessageTypeUserJoined, UserInfo{UserID: id, UserName: userName})
	existing := make([]UserInfo, 0, len(others))
	for _, other := range others {
		name := UnknownUserName
		if u, ok := l.registry.Get(other); ok {
			name = u.UserName
		}
		existing = append(existing, UserInfo{UserID: other, UserName: name})

		if s, ok := l.Peer(other); ok {
			out = append(out, outbound{to: s, msg: joined})
		}
	}
	out = append(out, outbound{to: self, msg: mustMessage(MessageTypeExistingUsers, existing)})

	l.mu.Unlock()

	l.logger.Info("user joined room", "conn", id, "user", userName, "room", roomID, "members", len(others)+1)
	deliver(out)
	return true
}

// Disconnect removes every trace of id. It is safe to call more than once
// and for connections that never joined.
func (l *Lifecycle) Disconnect(id ConnID) {
	l.mu.Lock()

	l.connsMu.Lock()
	delete(l.conns, id)
	l.connsMu.Unlock()

	u, joined := l.registry.Get(id)
	var out []outbound
	if joined {
		out = l.leaveLocked(id, u)
	}

	l.mu.Unlock()

	if joined {
		l.logger.Info("user left room", "conn", id, "user", u.UserName, "room", u.RoomID)
	}
	deliver(out)
}

// leaveLocked removes id from its room and registry entry, returning the
// user-left notifications for whoever remains. Caller holds l.mu.
func (l *Lifecycle) leaveLocked(id ConnID, u User) []outbound {
	remaining := l.directory.Leave(u.RoomID, id)
	l.registry.Remove(id)

	if len(remaining) == 0 {
		l.logger.Debug("room deleted", "room", u.RoomID)
		return nil
	}

	left := mustMessage(MessageTypeUserLeft, UserInfo{UserID: id, UserName: u.UserName})
	out := make([]outbound, 0, len(remaining))
	for _, other := range remaining {
		if s, ok := l.Peer(other); ok {
			out = append(out, outbound{to: s, msg: left})
		}
	}
	return out
}

// Senders returns a snapshot of every live connection.
func (l *Lifecycle) Senders() []Sender {
	l.connsMu.RLock()
	defer l.connsMu.RUnlock()
	out := make([]Sender, 0, len(l.conns))
	for _, s := range l.conns {
		out = append(out, s)
	}
	return out
}

func (l *Lifecycle) Stats() Stats {
	l.connsMu.RLock()
	conns := len(l.conns)
	l.connsMu.RUnlock()

	return Stats{
		Rooms:       l.directory.Len(),
		Connections: conns,
		Users:       l.registry.Len(),
	}
}

func deliver(out []outbound) {
	for _, o := range out {
		o.to.Send(o.msg)
	}
}
