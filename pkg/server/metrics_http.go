package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes
// /metrics in Prometheus text exposition format. It runs in the
// background and shuts down when the server context is cancelled.
//
// Disabled unless Config.MetricsAddr is set, so the default surface
// stays a single TCP port.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("relay_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("relay_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("relay_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("relay_handshakes_rejected_total", "Connections rejected for a bad join line.", "counter",
		m.RejectedHandshakes.Load())
	write("relay_sessions_joined_total", "Successful join handshakes.", "counter",
		m.JoinedSessions.Load())
	write("relay_disconnects_total", "Registered sessions torn down.", "counter",
		m.TotalDisconnects.Load())

	write("relay_messages_total", "Broadcast messages relayed.", "counter",
		m.MessagesRelayed.Load())
	write("relay_private_messages_total", "Private messages routed.", "counter",
		m.PrivateMessages.Load())
	write("relay_typing_events_total", "Typing signals relayed.", "counter",
		m.TypingEvents.Load())
	write("relay_dropped_lines_total", "Undecodable lines dropped.", "counter",
		m.DroppedLines.Load())
	write("relay_failed_writes_total", "Per-recipient write failures swallowed.", "counter",
		m.FailedWrites.Load())
	write("relay_unknown_targets_total", "Private messages to unknown users.", "counter",
		m.UnknownTargets.Load())
}
