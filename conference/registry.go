package conference

import "sync"

// Registry is the lazily-populated set of live rooms, keyed by name.
// Grounded on the teacher's single global Room instance generalized to a
// multi-room map, matching spec.md §4.9's "created lazily on first join;
// destroyed when empty" rule.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// JoinRoom returns the named room, creating it if absent, and adds a new
// member to it.
func (reg *Registry) JoinRoom(roomName, memberID, nickname string) (*Room, *Member) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomName]
	if !ok {
		room = newRoom(roomName)
		reg.rooms[roomName] = room
	}
	reg.mu.Unlock()

	member := room.Join(memberID, nickname)
	return room, member
}

// LeaveRoom removes memberID from roomName and destroys the room if it
// becomes empty.
func (reg *Registry) LeaveRoom(roomName, memberID string) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomName]
	if !ok {
		reg.mu.Unlock()
		return
	}
	reg.mu.Unlock()

	if room.Leave(memberID) {
		reg.mu.Lock()
		if r, ok := reg.rooms[roomName]; ok && r == room {
			delete(reg.rooms, roomName)
		}
		reg.mu.Unlock()
	}
}

// Room looks up a room by name without creating it.
func (reg *Registry) Room(name string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[name]
	return r, ok
}

// RoomCount reports the number of currently live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
