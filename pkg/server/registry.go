package server

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

// ErrNameEmpty is returned by Register for an empty or whitespace-only
// username. Callers reject such names before registering; the check
// here is the registry's own invariant.
var ErrNameEmpty = errors.New("server: username must not be empty or whitespace")

// Session is a live, registered connection. The transport is owned by
// the connection handler that created the session; the dispatcher only
// borrows the write side through Send.
type Session struct {
	Name string

	conn lineConn
	mu   sync.Mutex // serializes concurrent writers sharing this session
}

// Send writes one encoded envelope line to the session's transport.
// Safe for concurrent use; the session never closes its own transport.
func (s *Session) Send(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteLine(line)
}

// Registry is the shared mapping from username to live session. All
// mutation and snapshot operations happen under one mutex; the lock is
// never held across I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register inserts a new session under candidate, or under the first
// free integer-suffixed variant ("alice" -> "alice1" -> "alice2") when
// candidate is taken. The existence check and insert are one lock-held
// operation, so two colliding registrations can never resolve to the
// same final name. Never blocks on I/O.
func (r *Registry) Register(candidate string, conn lineConn) (*Session, error) {
	name := strings.TrimSpace(candidate)
	if name == "" {
		return nil, ErrNameEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	final := name
	for i := 1; ; i++ {
		if _, taken := r.sessions[final]; !taken {
			break
		}
		final = name + strconv.Itoa(i)
	}

	sess := &Session{Name: final, conn: conn}
	r.sessions[final] = sess
	return sess, nil
}

// Unregister removes the session registered under name. Removing an
// absent name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, name)
}

// Lookup returns the session registered under name, if any.
func (r *Registry) Lookup(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[name]
	return sess, ok
}

// Snapshot returns a point-in-time copy of all sessions. The copy is
// taken under the lock and the lock is released before the caller
// performs any I/O against it, so a slow recipient never stalls
// registration.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		result = append(result, sess)
	}
	return result
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
