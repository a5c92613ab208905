package chat

// Transport is one client's framed byte stream. The TCP listener and the
// websocket bridge both produce Transports; the session layer never sees
// which one it got.
type Transport interface {
	// ReadLine blocks for the next frame, stripped of its line ending.
	ReadLine() (string, error)
	// WriteLine sends one frame. Implementations append the line ending.
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

var (
	ErrHandleTaken   = errorString("handle_taken")
	ErrHandleUnknown = errorString("handle_unknown")
	ErrSelfPair      = errorString("two_party_self")
	ErrRoomExists    = errorString("room_exists")
	ErrRoomUnknown   = errorString("room_unknown")
	ErrRoomClosed    = errorString("room_closed")
	ErrAlreadyMember = errorString("already_member")
	ErrNotMember     = errorString("not_member")
)

type errorString string

func (e errorString) Error() string { return string(e) }
