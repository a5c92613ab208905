package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/bzinberg/guichat/internal/protocol"
)

// Room owns one conversation: the authoritative member set and the fan-out of
// room-scoped notifications. Every operation holds the room's own lock, so
// broadcasts on the same room are totally ordered. Under the lock we only
// enqueue to member buffers; the socket writes happen in each session's
// writer goroutine.
//
// A room that empties is closed and never reused. The registry removes the
// directory entry afterwards; the closed flag keeps a racing join from
// landing in the orphaned object.
type Room struct {
	name string

	mu      sync.Mutex
	members map[string]*Session
	closed  bool
}

func newRoom(name string) *Room {
	return &Room{name: name, members: make(map[string]*Session)}
}

func (r *Room) Name() string { return r.name }

// Add inserts s as a member. The newcomer gets an entered-room frame listing
// the full membership (itself included); everyone else gets an added-to-room
// frame naming the newcomer.
func (r *Room) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	h := s.Handle()
	if _, ok := r.members[h]; ok {
		return ErrAlreadyMember
	}
	r.members[h] = s
	s.trackRoom(r.name)
	s.enqueue(protocol.Encode(protocol.TypeEnteredRoom, append([]string{r.name}, r.memberHandlesLocked()...)...))
	for mh, m := range r.members {
		if mh == h {
			continue
		}
		m.enqueue(protocol.Encode(protocol.TypeAddedToRoom, h, r.name))
	}
	return nil
}

// AddPair seeds a fresh two-party room with both participants at once. Both
// get entered-room frames listing each other; nobody gets added-to-room,
// because from each party's point of view the room came into existence fully
// populated.
func (r *Room) AddPair(a, b *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[a.Handle()] = a
	r.members[b.Handle()] = b
	a.trackRoom(r.name)
	b.trackRoom(r.name)
	line := protocol.Encode(protocol.TypeEnteredRoom, append([]string{r.name}, r.memberHandlesLocked()...)...)
	a.enqueue(line)
	b.enqueue(line)
}

// Remove evicts s and tells every remaining member. The second return is true
// when the room just emptied; the caller is expected to unfile it.
func (r *Room) Remove(s *Session) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := s.Handle()
	if _, ok := r.members[h]; !ok {
		return false, ErrNotMember
	}
	delete(r.members, h)
	s.untrackRoom(r.name)
	for _, m := range r.members {
		m.enqueue(protocol.Encode(protocol.TypeRemovedFromRoom, h, r.name))
	}
	if len(r.members) == 0 {
		r.closed = true
		return true, nil
	}
	return false, nil
}

// Broadcast delivers an im frame to every member, the sender included; the
// echo is how the sender's client confirms delivery. Fails if the sender is
// not a member, checked atomically with the fan-out.
func (r *Room) Broadcast(sender, messageID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[sender]; !ok {
		return ErrNotMember
	}
	BroadcastFanout.Observe(float64(len(r.members)))
	line := protocol.Encode(protocol.TypeIM, sender, r.name, messageID, text)
	for _, m := range r.members {
		m.enqueue(line)
	}
	return nil
}

func (r *Room) Contains(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[handle]
	return ok
}

// Members returns a sorted snapshot of member handles.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberHandlesLocked()
}

func (r *Room) memberHandlesLocked() []string {
	handles := lo.Keys(r.members)
	sort.Strings(handles)
	return handles
}
