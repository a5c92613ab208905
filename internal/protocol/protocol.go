// Package protocol implements the line-oriented, tab-delimited wire format
// spoken between clients and the server. Each frame is one line: a type code
// followed by tab-separated fields. Fields never contain tabs or newlines.
package protocol

import (
	"errors"
	"regexp"
	"strings"
)

// Client-to-server frame types.
const (
	TypeConnect              = "connect"
	TypeIM                   = "im"
	TypeNewRoom              = "new-room"
	TypeAddToRoom            = "add-to-room"
	TypeEnterRoom            = "enter-room"
	TypeExitRoom             = "exit-room"
	TypeDisconnect           = "disconnect"
	TypeRetrieveParticipants = "retrieve-participants"
	TypeTwoWayRoom           = "two-way-room"
)

// Server-to-client frame types. TypeIM is shared: the delivery frame carries
// the same code as the request.
const (
	TypeInitRoster      = "init-roster"
	TypeAddedToRoom     = "added-to-room"
	TypeEnteredRoom     = "entered-room"
	TypeRemovedFromRoom = "removed-from-room"
	TypeConnected       = "connected"
	TypeDisconnected    = "disconnected"
	TypeParticipants    = "participants"
	TypeError           = "error"
)

// Field grammars, carried over from the original network constants.
const (
	handlePat    = `[^\t\n]{1,256}`
	newHandlePat = `[^\t\n]{0,256}`
	roomPat      = `[^\t\n]{1,256}`
	newRoomPat   = `[^\t\n]{0,256}`
	messageIDPat = `[0-9]{1,9}`
	textPat      = `[^\t\n]{1,512}`
)

// requestGrammar maps each client frame type to the full-line pattern it must
// match. A line either matches its type's grammar entirely or is rejected;
// there is no partial acceptance.
var requestGrammar = map[string]*regexp.Regexp{
	TypeConnect:              regexp.MustCompile(`^connect\t(` + newHandlePat + `)$`),
	TypeIM:                   regexp.MustCompile(`^im\t(` + roomPat + `)\t(` + messageIDPat + `)\t(` + textPat + `)$`),
	TypeNewRoom:              regexp.MustCompile(`^new-room\t(` + newRoomPat + `)$`),
	TypeAddToRoom:            regexp.MustCompile(`^add-to-room\t(` + handlePat + `)\t(` + roomPat + `)$`),
	TypeEnterRoom:            regexp.MustCompile(`^enter-room\t(` + roomPat + `)$`),
	TypeExitRoom:             regexp.MustCompile(`^exit-room\t(` + roomPat + `)$`),
	TypeDisconnect:           regexp.MustCompile(`^disconnect\t?$`),
	TypeRetrieveParticipants: regexp.MustCompile(`^retrieve-participants\t(` + roomPat + `)$`),
	TypeTwoWayRoom:           regexp.MustCompile(`^two-way-room\t(` + handlePat + `)$`),
}

// ErrMalformed reports a line that matches no known request grammar.
var ErrMalformed = errors.New("malformed frame")

// Request is one decoded client frame.
type Request struct {
	Type   string
	Fields []string
}

// Decode parses a single raw line into a Request. It never panics on any
// input: a line whose type code is unknown, or that fails its type's field
// grammar, comes back as ErrMalformed and the caller decides how to report
// it.
func Decode(line string) (Request, error) {
	code := line
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		code = line[:i]
	}
	re, ok := requestGrammar[code]
	if !ok {
		return Request{}, ErrMalformed
	}
	m := re.FindStringSubmatch(line)
	if m == nil {
		return Request{}, ErrMalformed
	}
	return Request{Type: code, Fields: m[1:]}, nil
}

// Encode joins a type code and its fields into one wire line, without the
// trailing newline. It is the inverse of Decode for well-formed frames.
func Encode(msgType string, fields ...string) string {
	if len(fields) == 0 {
		return msgType
	}
	return msgType + "\t" + strings.Join(fields, "\t")
}
