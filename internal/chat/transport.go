package chat

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

// tcpTransport frames a plain stream socket into newline-terminated lines.
type tcpTransport struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
}

// NewTCPTransport wraps an accepted connection.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (t *tcpTransport) ReadLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}

func (t *tcpTransport) WriteLine(line string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
