package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/NicolasHaas/gorelay/pkg/protocol"
)

// fakeConn is an in-memory lineConn that records written lines.
type fakeConn struct {
	mu        sync.Mutex
	lines     [][]byte
	failWrite bool
	closed    bool
}

func (c *fakeConn) ReadLine() ([]byte, error) { return nil, io.EOF }

func (c *fakeConn) WriteLine(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("forced write failure")
	}
	cp := make([]byte, len(line))
	copy(cp, line)
	c.lines = append(c.lines, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string                { return "fake:0" }
func (c *fakeConn) SetReadDeadline(_ time.Time) error { return nil }

func (c *fakeConn) written(t *testing.T) []*protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	envs := make([]*protocol.Envelope, 0, len(c.lines))
	for _, line := range c.lines {
		env, err := protocol.Decode(line)
		if err != nil {
			t.Fatalf("decode written line %q: %v", line, err)
		}
		envs = append(envs, env)
	}
	return envs
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(DefaultConfig())
}

// testClient drives one end of a net.Pipe against a running handler.
// A background pump drains the connection so synchronous pipe writes
// from the dispatcher never block on a client the test is not reading.
type testClient struct {
	t     *testing.T
	conn  net.Conn
	inbox chan *protocol.Envelope
}

func dialTestServer(t *testing.T, s *Server) *testClient {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	go s.handleConn(newTCPLineConn(serverSide, s.cfg.MaxLineBytes))

	c := &testClient{
		t:     t,
		conn:  clientSide,
		inbox: make(chan *protocol.Envelope, 64),
	}
	go func() {
		defer close(c.inbox)
		scan := bufio.NewScanner(clientSide)
		scan.Buffer(make([]byte, 0, 4096), protocol.MaxLineBytes)
		for scan.Scan() {
			env, err := protocol.Decode(scan.Bytes())
			if err != nil {
				continue
			}
			c.inbox <- env
		}
	}()
	t.Cleanup(func() { _ = clientSide.Close() })
	return c
}

func (c *testClient) send(env *protocol.Envelope) {
	c.t.Helper()
	line, err := protocol.Encode(env)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	c.sendRaw(string(line))
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) join(name string) {
	c.t.Helper()
	c.send(&protocol.Envelope{Type: protocol.KindJoin, From: name, Ts: time.Now().Unix()})
}

func (c *testClient) recv() *protocol.Envelope {
	c.t.Helper()
	select {
	case env, ok := <-c.inbox:
		if !ok {
			c.t.Fatalf("stream closed while expecting an envelope")
		}
		return env
	case <-time.After(2 * time.Second):
		c.t.Fatalf("timeout waiting for an envelope")
	}
	return nil
}

func (c *testClient) recvKind(kind string) *protocol.Envelope {
	c.t.Helper()
	env := c.recv()
	if env.Type != kind {
		c.t.Fatalf("expected %q envelope, got %q (%+v)", kind, env.Type, env)
	}
	return env
}

// expectClosed asserts the server closes the stream without sending
// anything further.
func (c *testClient) expectClosed() {
	c.t.Helper()
	select {
	case env, ok := <-c.inbox:
		if ok {
			c.t.Fatalf("expected stream close, got envelope %+v", env)
		}
	case <-time.After(2 * time.Second):
		c.t.Fatalf("timeout waiting for stream close")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
