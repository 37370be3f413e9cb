package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{}

// StartWebsocket starts the optional websocket gateway. Each /ws
// connection runs the same handler state machine as a TCP connection,
// with one text frame standing in for one envelope line.
//
// Disabled unless Config.WSAddr is set; TCP remains the canonical
// transport.
func (s *Server) StartWebsocket() error {
	addr := s.cfg.WSAddr
	if addr == "" {
		return nil // gateway disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("websocket gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("websocket gateway error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()

	return nil
}

// handleWebsocket upgrades one HTTP request and hands the connection to
// the shared state machine.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	go s.handleConn(newWSLineConn(conn))
}
