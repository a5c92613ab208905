package chat

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/bzinberg/guichat/internal/protocol"
)

// Registry is the process-wide authority over two directories: authenticated
// sessions by handle and live rooms by name. Every cross-session and
// cross-room operation goes through it, identified by the caller's handle
// string. The directory maps are the single source of truth for "is this
// handle live" and "does this room exist"; nothing keys off object identity.
//
// Lock discipline: the handle directory lock comes before the room directory
// lock, a room's own lock comes after either, and no lock is ever held across
// socket I/O. Failures are returned to the calling session, which translates
// them into error frames; the registry itself never sends one.
type Registry struct {
	log *slog.Logger

	mu       sync.Mutex // guards sessions
	sessions map[string]*Session

	roomsMu sync.Mutex // guards rooms
	rooms   map[string]*Room
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		log:      logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*Room),
	}
}

// RegisterSession claims a handle for s and makes it addressable. An empty
// desired handle means "assign me one"; generation retries under the lock
// until a free key turns up. The check and the insert happen without
// releasing the lock, so of two racing claims on the same handle exactly one
// succeeds.
//
// On success the newcomer gets an init-roster frame, its own handle first,
// and every other session gets a connected frame.
func (r *Registry) RegisterSession(desired string, s *Session) (string, error) {
	var handle string
	r.mu.Lock()
	if desired == "" {
		for {
			handle = freshKey("user")
			if _, taken := r.sessions[handle]; !taken {
				break
			}
		}
	} else {
		if _, taken := r.sessions[desired]; taken {
			r.mu.Unlock()
			return "", ErrHandleTaken
		}
		handle = desired
	}
	s.setHandle(handle)
	r.sessions[handle] = s
	others := make([]*Session, 0, len(r.sessions)-1)
	roster := make([]string, 0, len(r.sessions)-1)
	for h, other := range r.sessions {
		if h == handle {
			continue
		}
		others = append(others, other)
		roster = append(roster, h)
	}
	ConnectedSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	sort.Strings(roster)
	s.enqueue(protocol.Encode(protocol.TypeInitRoster, append([]string{handle}, roster...)...))
	for _, other := range others {
		other.enqueue(protocol.Encode(protocol.TypeConnected, handle))
	}
	r.log.Info("session registered", "handle", handle)
	return handle, nil
}

// UnregisterSession removes a handle from the directory, evicts it from every
// room it occupied, and tells everyone left. Idempotent: the directory check
// makes the cascade run exactly once even when read failure, write failure,
// and an explicit disconnect race each other.
func (r *Registry) UnregisterSession(handle string) {
	r.mu.Lock()
	s, ok := r.sessions[handle]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, handle)
	remaining := lo.Values(r.sessions)
	ConnectedSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, name := range s.roomSnapshot() {
		room, err := r.lookupRoom(name)
		if err != nil {
			continue
		}
		empty, err := room.Remove(s)
		if err != nil {
			continue
		}
		if empty {
			r.unfileRoom(name, room)
		}
	}
	for _, other := range remaining {
		other.enqueue(protocol.Encode(protocol.TypeDisconnected, handle))
	}
	r.log.Info("session unregistered", "handle", handle)
}

// SendMessage fans text out to every member of roomName, the sender included.
func (r *Registry) SendMessage(sender, roomName, messageID, text string) error {
	if _, err := r.lookupSession(sender); err != nil {
		return err
	}
	room, err := r.lookupRoom(roomName)
	if err != nil {
		return err
	}
	return room.Broadcast(sender, messageID, text)
}

// CreateRoom files a new room with owner as its sole initial member and
// returns the room's name. An empty name requests an auto-generated one. The
// owner joins while the directory lock is still held, so a filed room is
// never observably empty.
func (r *Registry) CreateRoom(owner, name string) (string, error) {
	s, err := r.lookupSession(owner)
	if err != nil {
		return "", err
	}
	r.roomsMu.Lock()
	if name == "" {
		for {
			name = freshKey("room")
			if _, taken := r.rooms[name]; !taken {
				break
			}
		}
	} else if _, taken := r.rooms[name]; taken {
		r.roomsMu.Unlock()
		return "", ErrRoomExists
	}
	room := newRoom(name)
	r.rooms[name] = room
	ActiveRooms.Set(float64(len(r.rooms)))
	if err := room.Add(s); err != nil {
		// Unreachable on a fresh room; kept so a failed add can never leave
		// an empty room filed.
		delete(r.rooms, name)
		ActiveRooms.Set(float64(len(r.rooms)))
		r.roomsMu.Unlock()
		return "", err
	}
	r.roomsMu.Unlock()
	r.log.Info("room created", "room", name, "owner", owner)
	return name, nil
}

// JoinRoom adds handle to an existing room. Joining a room that is mid-
// removal retries the lookup: the joiner sees either "no such room" or a
// fresh room under the same name, never the dying member set.
func (r *Registry) JoinRoom(handle, roomName string) error {
	s, err := r.lookupSession(handle)
	if err != nil {
		return err
	}
	for {
		room, err := r.lookupRoom(roomName)
		if err != nil {
			return err
		}
		if err := room.Add(s); err != ErrRoomClosed {
			return err
		}
	}
}

// LeaveRoom removes handle from a room and unfiles the room if that emptied
// it.
func (r *Registry) LeaveRoom(handle, roomName string) error {
	s, err := r.lookupSession(handle)
	if err != nil {
		return err
	}
	room, err := r.lookupRoom(roomName)
	if err != nil {
		return err
	}
	empty, err := room.Remove(s)
	if err != nil {
		return err
	}
	if empty {
		r.unfileRoom(roomName, room)
	}
	return nil
}

// RequestTwoPartyRoom allocates a freshly named room holding exactly handleA
// and handleB. Both parties get entered-room frames naming each other.
func (r *Registry) RequestTwoPartyRoom(handleA, handleB string) (string, error) {
	if handleA == handleB {
		return "", ErrSelfPair
	}
	r.mu.Lock()
	sa, oka := r.sessions[handleA]
	sb, okb := r.sessions[handleB]
	r.mu.Unlock()
	if !oka || !okb {
		return "", ErrHandleUnknown
	}

	r.roomsMu.Lock()
	var name string
	for {
		name = freshKey("room")
		if _, taken := r.rooms[name]; !taken {
			break
		}
	}
	room := newRoom(name)
	r.rooms[name] = room
	ActiveRooms.Set(float64(len(r.rooms)))
	room.AddPair(sa, sb)
	r.roomsMu.Unlock()
	r.log.Info("two-party room created", "room", name, "a", handleA, "b", handleB)
	return name, nil
}

// QueryRoster sends handle a participants frame listing roomName's current
// members. Membership is not required to ask.
func (r *Registry) QueryRoster(handle, roomName string) error {
	s, err := r.lookupSession(handle)
	if err != nil {
		return err
	}
	room, err := r.lookupRoom(roomName)
	if err != nil {
		return err
	}
	s.enqueue(protocol.Encode(protocol.TypeParticipants, append([]string{roomName}, room.Members()...)...))
	return nil
}

// TerminateAll tears down every live session; used on server shutdown.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Terminate()
	}
}

func (r *Registry) lookupSession(handle string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return nil, ErrHandleUnknown
	}
	return s, nil
}

func (r *Registry) lookupRoom(name string) (*Room, error) {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil, ErrRoomUnknown
	}
	return room, nil
}

// unfileRoom deletes a directory entry, but only if it still maps to the room
// that emptied. A new room may already have been created under the same name;
// the pointer check keeps it safe.
func (r *Registry) unfileRoom(name string, room *Room) {
	r.roomsMu.Lock()
	if r.rooms[name] == room {
		delete(r.rooms, name)
		ActiveRooms.Set(float64(len(r.rooms)))
	}
	r.roomsMu.Unlock()
}

// freshKey produces a candidate auto-assigned handle or room name. Callers
// retry under their directory lock until the key is free, so the generation
// strategy can change without touching them.
func freshKey(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
