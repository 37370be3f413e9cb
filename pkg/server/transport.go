package server

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// lineConn abstracts one client transport as a stream of envelope
// lines. The TCP implementation frames on newlines; the websocket
// implementation maps one text frame to one line.
type lineConn interface {
	// ReadLine blocks until one line is available or the stream ends.
	ReadLine() ([]byte, error)
	// WriteLine writes one encoded envelope line.
	WriteLine(line []byte) error
	Close() error
	RemoteAddr() string
	SetReadDeadline(t time.Time) error
}

type tcpLineConn struct {
	conn net.Conn
	scan *bufio.Scanner
}

func newTCPLineConn(conn net.Conn, maxLineBytes int) *tcpLineConn {
	scan := bufio.NewScanner(conn)
	scan.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &tcpLineConn{conn: conn, scan: scan}
}

// ReadLine returns the next newline-delimited line. The returned slice
// is only valid until the next call. An over-long line surfaces as
// bufio.ErrTooLong and ends the connection; resynchronizing mid-stream
// is not worth the ambiguity.
func (c *tcpLineConn) ReadLine() ([]byte, error) {
	if c.scan.Scan() {
		return c.scan.Bytes(), nil
	}
	if err := c.scan.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (c *tcpLineConn) WriteLine(line []byte) error {
	_, err := c.conn.Write(line)
	return err
}

func (c *tcpLineConn) Close() error {
	return c.conn.Close()
}

func (c *tcpLineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpLineConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

type wsLineConn struct {
	conn *websocket.Conn
}

func newWSLineConn(conn *websocket.Conn) *wsLineConn {
	return &wsLineConn{conn: conn}
}

// ReadLine returns the payload of the next data frame. Control frames
// are handled inside gorilla's ReadMessage.
func (c *wsLineConn) ReadLine() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsLineConn) WriteLine(line []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(line, []byte("\n")))
}

func (c *wsLineConn) Close() error {
	return c.conn.Close()
}

func (c *wsLineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsLineConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
