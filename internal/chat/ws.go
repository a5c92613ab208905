package chat

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The protocol carries no cookies or ambient authority, so a cross-origin
	// dial is no more dangerous than a raw TCP connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket upgrades the request and runs the same session loop as the
// TCP listener, one protocol frame per websocket text message.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.log.Info("websocket client connected", "addr", conn.RemoteAddr().String())
	sess := NewSession(s.reg, NewWebsocketTransport(conn), s.cfg.OutBufferSize, s.log)
	go sess.Run()
}

// wsTransport carries one frame per text message. gorilla conns allow one
// concurrent writer, hence the mutex.
type wsTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadLine() (string, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (t *wsTransport) WriteLine(line string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
