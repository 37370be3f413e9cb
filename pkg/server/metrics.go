package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks relay runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections   atomic.Int64 // lifetime connections accepted (TCP + websocket)
	ActiveConnections  atomic.Int64 // current open connections, registered or not
	RejectedHandshakes atomic.Int64 // connections closed for a bad join line
	JoinedSessions     atomic.Int64 // successful join handshakes
	TotalDisconnects   atomic.Int64 // registered sessions torn down (clean + unclean)

	// Relay counters
	MessagesRelayed atomic.Int64 // msg envelopes broadcast
	PrivateMessages atomic.Int64 // pm envelopes routed
	TypingEvents    atomic.Int64 // typing/stop_typing envelopes relayed
	DroppedLines    atomic.Int64 // undecodable lines dropped in the Active state
	FailedWrites    atomic.Int64 // per-recipient write failures swallowed
	UnknownTargets  atomic.Int64 // pm envelopes to unregistered usernames
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a
// serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections  int64 `json:"active_connections"`
	TotalConnections   int64 `json:"total_connections"`
	RejectedHandshakes int64 `json:"rejected_handshakes"`
	JoinedSessions     int64 `json:"joined_sessions"`
	TotalDisconnects   int64 `json:"total_disconnects"`

	MessagesRelayed int64 `json:"messages_relayed"`
	PrivateMessages int64 `json:"private_messages"`
	TypingEvents    int64 `json:"typing_events"`
	DroppedLines    int64 `json:"dropped_lines"`
	FailedWrites    int64 `json:"failed_writes"`
	UnknownTargets  int64 `json:"unknown_targets"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		ActiveConnections:  m.ActiveConnections.Load(),
		TotalConnections:   m.TotalConnections.Load(),
		RejectedHandshakes: m.RejectedHandshakes.Load(),
		JoinedSessions:     m.JoinedSessions.Load(),
		TotalDisconnects:   m.TotalDisconnects.Load(),
		MessagesRelayed:    m.MessagesRelayed.Load(),
		PrivateMessages:    m.PrivateMessages.Load(),
		TypingEvents:       m.TypingEvents.Load(),
		DroppedLines:       m.DroppedLines.Load(),
		FailedWrites:       m.FailedWrites.Load(),
		UnknownTargets:     m.UnknownTargets.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"sessions", s.JoinedSessions,
		"msgs", s.MessagesRelayed,
		"pms", s.PrivateMessages,
		"failed_writes", s.FailedWrites,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
