package signaling

import "sync"

// User is what the registry knows about a joined connection.
type User struct {
	RoomID   string
	UserName string
}

// Registry maps a live connection to the room it joined and its display name.
type Registry struct {
	mu    sync.RWMutex
	users map[ConnID]User
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[ConnID]User),
	}
}

// Set inserts or overwrites the record for id.
func (r *Registry) Set(id ConnID, roomID, userName string) {
	r.mu.Lock()
	r.users[id] = User{RoomID: roomID, UserName: userName}
	r.mu.Unlock()
}

func (r *Registry) Get(id ConnID) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// Remove deletes the record for id. Absent ids are ignored.
func (r *Registry) Remove(id ConnID) {
	r.mu.Lock()
	delete(r.users, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
