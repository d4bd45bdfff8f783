// Package conference implements the room/membership/rebroadcast engine
// described in spec.md §4.9: lazily-created rooms destroyed when empty,
// three per-member channels (video, audio, text), mute/camera-off gating,
// and text control operations. Grounded directly on the teacher's
// room.go (Room: client registry, broadcast-with-exclusion, owner/mute/
// slow-mode bookkeeping under a single RWMutex) and
// internal/core/channel_state.go's per-member session bookkeeping style.
package conference

import (
	"sync"
)

// Channel identifies one of a member's three connections.
type Channel string

const (
	ChannelVideo Channel = "video"
	ChannelAudio Channel = "audio"
	ChannelText  Channel = "text"
)

// Member is one connected participant in a Room.
type Member struct {
	ID       string
	Nickname string

	mu       sync.Mutex
	muted    bool
	videoOff bool
	videoOut *bufferedQueue
	audioOut *bufferedQueue
	textOut  *bufferedQueue
	isOwner  bool
}

// Muted reports whether the member's audio rebroadcast is currently gated.
func (m *Member) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// VideoOff reports whether the member's video rebroadcast is currently
// gated.
func (m *Member) VideoOff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOff
}

func (m *Member) setMuted(v bool) {
	m.mu.Lock()
	m.muted = v
	m.mu.Unlock()
}

func (m *Member) setVideoOff(v bool) {
	m.mu.Lock()
	m.videoOff = v
	m.mu.Unlock()
}

// Room is a named set of members. Created lazily by the Registry on first
// join, destroyed when it becomes empty.
type Room struct {
	Name string

	mu      sync.RWMutex
	members map[string]*Member
	ownerID string

	moderation *moderationState
}

func newRoom(name string) *Room {
	return &Room{Name: name, members: make(map[string]*Member), moderation: newModerationState()}
}

// mod returns the room's additive moderation state (reactions, pins, slow
// mode), built once at room creation.
func (r *Room) mod() *moderationState {
	return r.moderation
}

// Join adds a new member to the room. The first joiner becomes the room's
// owner.
func (r *Room) Join(id, nickname string) *Member {
	m := &Member{
		ID:       id,
		Nickname: nickname,
		videoOut: newBufferedQueue(DefaultQueueSize),
		audioOut: newBufferedQueue(DefaultQueueSize),
		textOut:  newBufferedQueue(DefaultQueueSize),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		r.ownerID = id
		m.isOwner = true
	}
	r.members[id] = m
	return m
}

// Leave removes a member from the room, returning true if the room is now
// empty (the caller should destroy it via Registry).
func (r *Room) Leave(id string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	if r.ownerID == id {
		r.transferOwnershipLocked()
	}
	return len(r.members) == 0
}

// transferOwnershipLocked assigns ownership to an arbitrary remaining
// member. Caller holds r.mu.
func (r *Room) transferOwnershipLocked() {
	r.ownerID = ""
	for id, m := range r.members {
		r.ownerID = id
		m.isOwner = true
		return
	}
}

// Member looks up a member by id.
func (r *Room) Member(id string) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return m, ok
}

// Members returns a snapshot of the room's current members.
func (r *Room) Members() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// OwnerID returns the current owner's member id.
func (r *Room) OwnerID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerID
}

// Rename changes the room's display name if requesterID is the current
// owner.
func (r *Room) Rename(requesterID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownerID != requesterID {
		return false
	}
	r.Name = name
	return true
}

// Kick removes targetID from the room if requesterID is the current owner.
// Returns false if the requester is not the owner or targetID is absent.
func (r *Room) Kick(requesterID, targetID string) bool {
	r.mu.Lock()
	if r.ownerID != requesterID {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.members[targetID]; !ok {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()
	r.Leave(targetID)
	return true
}

// broadcastExcept enqueues frame onto the matching channel queue of every
// member other than excludeID.
func (r *Room) broadcastExcept(channel Channel, frame []byte, excludeID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.members {
		if id == excludeID {
			continue
		}
		m.queueFor(channel).push(frame)
	}
}

// broadcastAll enqueues frame onto the matching channel queue of every
// member, the sender included (used for text echo).
func (r *Room) broadcastAll(channel Channel, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		m.queueFor(channel).push(frame)
	}
}

func (m *Member) queueFor(channel Channel) *bufferedQueue {
	switch channel {
	case ChannelVideo:
		return m.videoOut
	case ChannelAudio:
		return m.audioOut
	default:
		return m.textOut
	}
}
