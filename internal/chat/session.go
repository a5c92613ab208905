package chat

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/bzinberg/guichat/internal/protocol"
)

// Session is the server-side representative of one live connection. It owns
// the blocking receive loop, decodes each line, and dispatches it to exactly
// one registry operation under its own handle. The handle is empty until
// authentication succeeds and immutable afterwards.
//
// The rooms set is a cache of the session's own memberships, kept consistent
// with each room's authoritative member set through trackRoom/untrackRoom; at
// teardown it tells the registry which rooms to evict this session from.
type Session struct {
	registry *Registry
	tr       Transport
	log      *slog.Logger

	out  chan string
	done chan struct{}

	terminateOnce sync.Once

	mu     sync.Mutex
	handle string
	rooms  map[string]struct{}
}

func NewSession(reg *Registry, tr Transport, outBuffer int, logger *slog.Logger) *Session {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		registry: reg,
		tr:       tr,
		log:      logger,
		out:      make(chan string, outBuffer),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// Run drives the connection: authenticate, then handle one request at a time
// until an explicit disconnect, end of stream, or an I/O fault. Teardown runs
// exactly once no matter which of those ends the loop.
func (s *Session) Run() {
	s.startWriter()
	defer s.Terminate()

	if !s.authenticate() {
		return
	}
	s.log.Info("session authenticated", "handle", s.Handle(), "addr", s.tr.RemoteAddr())

	for {
		line, err := s.tr.ReadLine()
		if err != nil {
			return
		}
		if line == "" {
			continue
		}
		if !s.dispatch(line) {
			return
		}
	}
}

// authenticate handles the connecting state. The client must present a valid
// connect frame before anything else; malformed lines earn an error frame and
// another chance. A taken handle earns the duplicate-name rejection, written
// synchronously so it lands before the connection closes, and the session
// never becomes addressable.
func (s *Session) authenticate() bool {
	for {
		line, err := s.tr.ReadLine()
		if err != nil {
			return false
		}
		if line == "" {
			continue
		}
		req, err := protocol.Decode(line)
		if err != nil || req.Type != protocol.TypeConnect {
			s.sendError(line)
			continue
		}
		FramesTotal.WithLabelValues(req.Type, "in").Inc()
		if _, err := s.registry.RegisterSession(req.Fields[0], s); err != nil {
			_ = s.tr.WriteLine(protocol.Encode(protocol.TypeDisconnected, req.Fields[0]))
			return false
		}
		return true
	}
}

// dispatch routes one decoded request to its registry operation. Returns
// false when the loop should stop. Every rejection, whether a malformed line
// or a failed precondition, becomes an error frame wrapping the raw line; the
// connection stays open.
func (s *Session) dispatch(line string) bool {
	req, err := protocol.Decode(line)
	if err != nil {
		s.sendError(line)
		return true
	}
	FramesTotal.WithLabelValues(req.Type, "in").Inc()

	handle := s.Handle()
	switch req.Type {
	case protocol.TypeIM:
		err = s.registry.SendMessage(handle, req.Fields[0], req.Fields[1], req.Fields[2])
	case protocol.TypeNewRoom:
		_, err = s.registry.CreateRoom(handle, req.Fields[0])
	case protocol.TypeAddToRoom:
		err = s.registry.JoinRoom(req.Fields[0], req.Fields[1])
	case protocol.TypeEnterRoom:
		err = s.registry.JoinRoom(handle, req.Fields[0])
	case protocol.TypeExitRoom:
		err = s.registry.LeaveRoom(handle, req.Fields[0])
	case protocol.TypeRetrieveParticipants:
		err = s.registry.QueryRoster(handle, req.Fields[0])
	case protocol.TypeTwoWayRoom:
		_, err = s.registry.RequestTwoPartyRoom(handle, req.Fields[0])
	case protocol.TypeDisconnect:
		return false
	default:
		// A second connect after authentication is a protocol violation.
		err = protocol.ErrMalformed
	}
	if err != nil {
		s.sendError(line)
	}
	return true
}

// Terminate runs the teardown cascade once: unregister (which evicts the
// session from every room and broadcasts the disconnect), stop the writer,
// close the transport. Safe to call from the read loop, the writer, or the
// server's shutdown path concurrently.
func (s *Session) Terminate() {
	s.terminateOnce.Do(func() {
		handle := s.Handle()
		if handle != "" {
			s.registry.UnregisterSession(handle)
		}
		close(s.done)
		_ = s.tr.Close()
		if handle != "" {
			s.log.Info("session terminated", "handle", handle)
		}
	})
}

// Handle returns the authenticated handle, or "" before authentication.
func (s *Session) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) setHandle(handle string) {
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
}

func (s *Session) trackRoom(name string) {
	s.mu.Lock()
	s.rooms[name] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) untrackRoom(name string) {
	s.mu.Lock()
	delete(s.rooms, name)
	s.mu.Unlock()
}

func (s *Session) roomSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.rooms)
}

func (s *Session) sendError(rawLine string) {
	s.enqueue(protocol.Encode(protocol.TypeError, rawLine))
}
