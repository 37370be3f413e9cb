package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.TotalConnections.Add(5)
	m.ActiveConnections.Add(2)
	m.MessagesRelayed.Add(7)
	m.FailedWrites.Add(1)

	s := m.Snapshot()
	if s.TotalConnections != 5 || s.ActiveConnections != 2 {
		t.Errorf("connection counters = %d, %d", s.TotalConnections, s.ActiveConnections)
	}
	if s.MessagesRelayed != 7 || s.FailedWrites != 1 {
		t.Errorf("relay counters = %d, %d", s.MessagesRelayed, s.FailedWrites)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(m.JSON()), &parsed); err != nil {
		t.Fatalf("JSON() not parseable: %v", err)
	}
	if parsed["messages_relayed"].(float64) != 7 {
		t.Errorf("JSON messages_relayed = %v", parsed["messages_relayed"])
	}
}

func TestMetricsHandler(t *testing.T) {
	s := New(DefaultConfig())
	s.Metrics().MessagesRelayed.Add(3)
	s.Metrics().RejectedHandshakes.Add(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	s.handleMetrics(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"relay_messages_total 3",
		"relay_handshakes_rejected_total 1",
		"# TYPE relay_connections_active gauge",
		"relay_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
