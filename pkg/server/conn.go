package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/gorelay/pkg/protocol"
)

// connHandler drives one connection through its three states:
// AwaitingJoin, Active, Closed. States are never revisited; one handler
// goroutine owns the transport for the connection's whole lifetime.
type connHandler struct {
	server *Server
	conn   lineConn
	connID string

	// session is nil until the join handshake succeeds.
	session *Session
}

// handleConn runs a connection's full state machine. One goroutine per
// accepted connection; nothing here is shared with other handlers
// except the registry.
func (s *Server) handleConn(conn lineConn) {
	h := &connHandler{
		server: s,
		conn:   conn,
		connID: uuid.NewString(),
	}

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "conn", h.connID, "remote", conn.RemoteAddr())

	defer func() {
		// Close failures are non-actionable on a connection that is
		// already being torn down.
		_ = conn.Close()
		s.metrics.ActiveConnections.Add(-1)
	}()

	if !h.awaitJoin() {
		return
	}
	defer h.closeSession()
	h.readLoop()
}

// awaitJoin reads and validates the handshake line, registering the
// session on success. Returns false when the connection must close
// without ever having been registered.
func (h *connHandler) awaitJoin() bool {
	cfg := h.server.cfg

	if timeout := time.Duration(cfg.HandshakeTimeout); timeout > 0 {
		_ = h.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	line, err := h.conn.ReadLine()
	if err != nil {
		// Stream closed (or handshake deadline hit) before any line:
		// nothing was promised to this peer yet.
		slog.Debug("connection closed before join", "conn", h.connID, "err", err)
		return false
	}
	_ = h.conn.SetReadDeadline(time.Time{})

	env, err := protocol.Decode(line)
	if err != nil {
		h.reject("malformed join envelope")
		return false
	}
	if env.Type != protocol.KindJoin {
		h.reject("first message must be join")
		return false
	}
	if strings.TrimSpace(env.From) == "" {
		h.reject("join requires a username")
		return false
	}

	sess, err := h.server.registry.Register(env.From, h.conn)
	if err != nil {
		h.reject(err.Error())
		return false
	}
	h.session = sess
	h.server.metrics.JoinedSessions.Add(1)
	slog.Info("client joined",
		"user", sess.Name,
		"requested", env.From,
		"conn", h.connID,
		"remote", h.conn.RemoteAddr(),
	)

	if cfg.MOTD != "" {
		h.sendToSelf(&protocol.Envelope{
			Type: protocol.KindSys,
			Text: cfg.MOTD,
			Ts:   time.Now().Unix(),
		})
	}

	// Presence backlog: one synthetic join per already-online user so
	// the new client reconstructs the roster without a dedicated
	// message type. Computed from one snapshot taken strictly before
	// the join broadcast below.
	for _, other := range h.server.registry.Snapshot() {
		if other.Name == sess.Name {
			continue
		}
		h.sendToSelf(&protocol.Envelope{
			Type: protocol.KindJoin,
			From: other.Name,
			Ts:   time.Now().Unix(),
		})
	}

	h.server.dispatcher.Broadcast(&protocol.Envelope{
		Type: protocol.KindJoin,
		From: sess.Name,
		Ts:   time.Now().Unix(),
	})
	return true
}

// readLoop is the Active state: route lines until the peer leaves or
// the stream ends. Undecodable lines are dropped, not errors.
func (h *connHandler) readLoop() {
	d := h.server.dispatcher
	m := h.server.metrics

	for {
		line, err := h.conn.ReadLine()
		if err != nil {
			slog.Debug("read loop ended", "user", h.session.Name, "err", err)
			return
		}

		env, err := protocol.Decode(line)
		if err != nil {
			m.DroppedLines.Add(1)
			continue
		}

		// Client-declared identity and timestamps are never trusted.
		env.From = h.session.Name
		env.Ts = time.Now().Unix()

		switch env.Type {
		case protocol.KindMsg:
			m.MessagesRelayed.Add(1)
			d.Broadcast(env)
		case protocol.KindPM:
			m.PrivateMessages.Add(1)
			d.SendDirected(env.To, env)
		case protocol.KindTyping, protocol.KindStopTyping:
			// Stateless pass-through; any debounce belongs to clients.
			m.TypingEvents.Add(1)
			d.Broadcast(env)
		case protocol.KindLeave:
			return
		default:
			// join, sys, and unrecognized kinds are ignored in Active.
		}
	}
}

// closeSession is the Closed state for a registered connection:
// unregister first, then announce the departure exactly once.
func (h *connHandler) closeSession() {
	h.server.registry.Unregister(h.session.Name)
	h.server.metrics.TotalDisconnects.Add(1)
	slog.Info("client left", "user", h.session.Name, "conn", h.connID)

	h.server.dispatcher.Broadcast(&protocol.Envelope{
		Type: protocol.KindLeave,
		From: h.session.Name,
		Ts:   time.Now().Unix(),
	})
}

// reject answers a failed handshake with one sys envelope. The write is
// best-effort; the connection closes either way and no session was
// ever created.
func (h *connHandler) reject(reason string) {
	h.server.metrics.RejectedHandshakes.Add(1)
	slog.Debug("handshake rejected", "conn", h.connID, "remote", h.conn.RemoteAddr(), "reason", reason)

	line, err := protocol.Encode(&protocol.Envelope{
		Type: protocol.KindSys,
		Text: "invalid handshake: " + reason,
		Ts:   time.Now().Unix(),
	})
	if err != nil {
		return
	}
	_ = h.conn.WriteLine(line)
}

// sendToSelf writes one envelope to this handler's own session,
// swallowing failures like any other dispatch write.
func (h *connHandler) sendToSelf(env *protocol.Envelope) {
	line, err := protocol.Encode(env)
	if err != nil {
		slog.Error("encode failed", "kind", env.Type, "err", err)
		return
	}
	if err := h.session.Send(line); err != nil {
		h.server.metrics.FailedWrites.Add(1)
		slog.Debug("self write failed", "user", h.session.Name, "err", err)
	}
}
