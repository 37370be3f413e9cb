// Package server implements the GoRelay server: a stateless text relay
// routing join/leave/msg/pm/typing envelopes between live sessions.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server is the main GoRelay server. The registry's key space is the
// only state shared across connection goroutines.
type Server struct {
	cfg        Config
	registry   *Registry
	dispatcher *Dispatcher
	metrics    *Metrics
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	metrics := NewMetrics()
	return &Server{
		cfg:        cfg,
		registry:   registry,
		dispatcher: NewDispatcher(registry, metrics),
		metrics:    metrics,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Dispatcher returns the message dispatcher.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start binds the TCP listener and spawns the accept loop. Failure to
// bind is the only fatal startup error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	slog.Info("relay listening", "addr", s.cfg.ListenAddr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(newTCPLineConn(conn, s.cfg.MaxLineBytes))
		}
	}()

	return nil
}

// Run starts all listeners and blocks until a shutdown signal. Open
// connections are not forcibly terminated on shutdown; they drain when
// their peers disconnect (graceful but incomplete, by contract).
func (s *Server) Run() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	if err := s.StartWebsocket(); err != nil {
		return err
	}
	s.StartMetricsHTTP()
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops the accept loops. Safe to call more than once.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
