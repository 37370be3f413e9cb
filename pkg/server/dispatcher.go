package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NicolasHaas/gorelay/pkg/protocol"
)

// Dispatcher routes envelopes to the registry's current membership.
// Delivery is best-effort and fire-and-forget: a dead recipient is
// detected by its own connection handler, never by the sender.
type Dispatcher struct {
	registry *Registry
	metrics  *Metrics
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		metrics:  metrics,
	}
}

// Broadcast encodes the envelope once and attempts one write per
// session in a fresh registry snapshot. A failed write neither aborts
// the loop nor is reported to the sender.
func (d *Dispatcher) Broadcast(env *protocol.Envelope) {
	line, err := protocol.Encode(env)
	if err != nil {
		slog.Error("broadcast encode failed", "kind", env.Type, "err", err)
		return
	}
	for _, sess := range d.registry.Snapshot() {
		if err := sess.Send(line); err != nil {
			d.metrics.FailedWrites.Add(1)
			slog.Debug("broadcast write failed", "user", sess.Name, "err", err)
		}
	}
}

// SendDirected delivers the envelope to exactly one named recipient.
// A blank target is a no-op. An unknown target is reported only to the
// sender via a sys envelope; if the sender's session is gone too, the
// envelope is dropped silently.
func (d *Dispatcher) SendDirected(to string, env *protocol.Envelope) {
	if strings.TrimSpace(to) == "" {
		return
	}

	if target, ok := d.registry.Lookup(to); ok {
		line, err := protocol.Encode(env)
		if err != nil {
			slog.Error("directed encode failed", "kind", env.Type, "err", err)
			return
		}
		if err := target.Send(line); err != nil {
			d.metrics.FailedWrites.Add(1)
			slog.Debug("directed write failed", "user", target.Name, "err", err)
		}
		return
	}

	d.metrics.UnknownTargets.Add(1)
	sender, ok := d.registry.Lookup(env.From)
	if !ok {
		return
	}
	notice := &protocol.Envelope{
		Type: protocol.KindSys,
		Text: fmt.Sprintf("User '%s' not found", to),
		Ts:   time.Now().Unix(),
	}
	line, err := protocol.Encode(notice)
	if err != nil {
		slog.Error("directed encode failed", "kind", notice.Type, "err", err)
		return
	}
	if err := sender.Send(line); err != nil {
		d.metrics.FailedWrites.Add(1)
		slog.Debug("directed write failed", "user", sender.Name, "err", err)
	}
}
