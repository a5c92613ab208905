package chat

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{
		ListenAddr:    "127.0.0.1:0",
		WSAddr:        "",
		MetricsAddr:   "",
		LogLevel:      "error",
		OutBufferSize: 256,
	}
	srv := NewServer(cfg, discardLogger())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

type tcpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialServer(t *testing.T, srv *Server) *tcpClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *tcpClient) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(time.Second)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *tcpClient) recv(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func connectAs(t *testing.T, srv *Server, handle string) *tcpClient {
	t.Helper()
	c := dialServer(t, srv)
	c.send(t, "connect\t"+handle)
	roster := c.recv(t)
	require.True(t, strings.HasPrefix(roster, "init-roster\t"+handle),
		"unexpected roster %q", roster)
	return c
}

func TestServer_SingleUserLogin(t *testing.T) {
	srv := startTestServer(t)
	c := dialServer(t, srv)

	c.send(t, "connect\ta")
	require.Equal(t, "init-roster\ta", c.recv(t))
}

func TestServer_DuplicateHandleGetsDisconnected(t *testing.T) {
	srv := startTestServer(t)
	a := connectAs(t, srv, "user")

	b := dialServer(t, srv)
	b.send(t, "connect\tuser")
	require.Equal(t, "disconnected\tuser", b.recv(t))

	// The original owner of the handle is unaffected.
	a.send(t, "new-room\tconv")
	require.Equal(t, "entered-room\tconv\tuser", a.recv(t))
}

func TestServer_RoomCreateAndJoinVisibility(t *testing.T) {
	srv := startTestServer(t)
	a := connectAs(t, srv, "a")
	b := connectAs(t, srv, "b")
	require.Equal(t, "connected\tb", a.recv(t))

	a.send(t, "new-room\tconv")
	require.Equal(t, "entered-room\tconv\ta", a.recv(t))

	b.send(t, "enter-room\tconv")
	require.Equal(t, "entered-room\tconv\ta\tb", b.recv(t))
	require.Equal(t, "added-to-room\tb\tconv", a.recv(t))
}

func TestServer_IMEchoesToLoneSender(t *testing.T) {
	srv := startTestServer(t)
	a := connectAs(t, srv, "a")
	a.send(t, "new-room\tconv")
	require.Equal(t, "entered-room\tconv\ta", a.recv(t))

	a.send(t, "im\tconv\t394\thello")
	require.Equal(t, "im\ta\tconv\t394\thello", a.recv(t))
}

func TestServer_LeaveNotifiesRemainingMember(t *testing.T) {
	srv := startTestServer(t)
	a := connectAs(t, srv, "a")
	b := connectAs(t, srv, "b")
	require.Equal(t, "connected\tb", a.recv(t))

	a.send(t, "new-room\tconv")
	require.Equal(t, "entered-room\tconv\ta", a.recv(t))
	b.send(t, "enter-room\tconv")
	require.Equal(t, "entered-room\tconv\ta\tb", b.recv(t))
	require.Equal(t, "added-to-room\tb\tconv", a.recv(t))

	a.send(t, "exit-room\tconv")
	require.Equal(t, "removed-from-room\ta\tconv", b.recv(t))
}

func TestServer_RosterCompleteness(t *testing.T) {
	srv := startTestServer(t)

	const n = 5
	clients := make([]*tcpClient, 0, n)
	for i := 0; i < n; i++ {
		handle := fmt.Sprintf("user%d", i)
		c := dialServer(t, srv)
		c.send(t, "connect\t"+handle)
		roster := c.recv(t)

		fields := strings.Split(roster, "\t")
		require.Equal(t, "init-roster", fields[0])
		require.Equal(t, handle, fields[1], "own handle comes first")
		require.Len(t, fields, 2+i, "roster lists the %d earlier handles", i)
		for j := 0; j < i; j++ {
			require.Contains(t, fields[2:], fmt.Sprintf("user%d", j))
		}
		clients = append(clients, c)
	}

	// Each earlier client saw every later arrival.
	for i, c := range clients {
		for j := i + 1; j < n; j++ {
			require.Equal(t, fmt.Sprintf("connected\tuser%d", j), c.recv(t))
		}
	}
}

func TestServer_TwoPartyRoomOverWire(t *testing.T) {
	srv := startTestServer(t)
	a := connectAs(t, srv, "alice")
	b := connectAs(t, srv, "bob")
	require.Equal(t, "connected\tbob", a.recv(t))

	a.send(t, "two-way-room\tbob")
	aFrame := a.recv(t)
	bFrame := b.recv(t)
	require.Equal(t, aFrame, bFrame)

	fields := strings.Split(aFrame, "\t")
	require.Equal(t, "entered-room", fields[0])
	require.Equal(t, []string{"alice", "bob"}, fields[2:])

	// The generated room is real: messages flow through it.
	roomName := fields[1]
	a.send(t, "im\t"+roomName+"\t7\they")
	require.Equal(t, "im\talice\t"+roomName+"\t7\they", b.recv(t))
}

func TestServer_StopTerminatesSessions(t *testing.T) {
	cfg := Config{ListenAddr: "127.0.0.1:0", LogLevel: "error", OutBufferSize: 64}
	srv := NewServer(cfg, discardLogger())
	require.NoError(t, srv.Start())

	c := dialServer(t, srv)
	c.send(t, "connect\ta")
	require.Equal(t, "init-roster\ta", c.recv(t))

	srv.Stop()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.r.ReadString('\n')
	require.Error(t, err)
}
