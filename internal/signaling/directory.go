package signaling

import (
	"sort"
	"sync"
)

// Directory maps a room ID to the connections currently in it.
//
// A room exists only while it has members: it is created by the first Join
// and deleted by the Leave that empties it.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[ConnID]uint64
	seq   uint64
}

func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]map[ConnID]uint64),
	}
}

// Join adds id to the room, creating the room if needed. Joining twice keeps
// the original position.
func (d *Directory) Join(roomID string, id ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		room = make(map[ConnID]uint64)
		d.rooms[roomID] = room
	}
	if _, member := room[id]; member {
		return
	}
	d.seq++
	room[id] = d.seq
}

// Members returns the room's members in join order, or nil if the room does
// not exist.
func (d *Directory) Members(roomID string) []ConnID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedMembers(d.rooms[roomID])
}

// Leave removes id from the room and returns the members left behind. The
// room is deleted once its last member leaves.
func (d *Directory) Leave(roomID string, id ConnID) []ConnID {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	delete(room, id)
	if len(room) == 0 {
		delete(d.rooms, roomID)
		return nil
	}
	return sortedMembers(room)
}

func (d *Directory) Exists(roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[roomID]
	return ok
}

// Len returns the number of non-empty rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func sortedMembers(room map[ConnID]uint64) []ConnID {
	if len(room) == 0 {
		return nil
	}
	ids := make([]ConnID, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return room[ids[i]] < room[ids[j]] })
	return ids
}

// BroadcastTargets returns members without excluding, preserving order.
func BroadcastTargets(members []ConnID, excluding ConnID) []ConnID {
	targets := make([]ConnID, 0, len(members))
	for _, id := range members {
		if id != excluding {
			targets = append(targets, id)
		}
	}
	return targets
}
