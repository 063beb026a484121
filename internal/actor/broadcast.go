package actor

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/pscheid92/collabcast/internal/metrics"
	"github.com/pscheid92/collabcast/internal/protocol"
	"github.com/pscheid92/collabcast/internal/session"
)

// broadcast delivers one envelope to every live session except the origin
// client's. Sends that fail transiently are retried once after RetryDelay;
// a rebroadcast sweep after RebroadcastDelay resends the same bytes to
// whatever sessions are ready by then, catching late reconnects.
//
// Called only from the run loop. Fire-and-forget relative to the mutation
// path: the timers deliver follow-up commands back into the mailbox.
func (a *Actor) broadcast(env protocol.Envelope, origin string) {
	if a.registry.Size() == 0 {
		return
	}

	data, err := env.Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast message",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", err)
		return
	}

	pending := a.deliver(data, origin, "first")

	if len(pending) > 0 {
		a.clock.AfterFunc(a.opts.RetryDelay, func() {
			_ = a.send(retryBroadcastCmd{data: data, origin: origin, pending: pending})
		})
	}

	a.clock.AfterFunc(a.opts.RebroadcastDelay, func() {
		_ = a.send(rebroadcastCmd{data: data, origin: origin})
	})
}

// broadcastTransient delivers ephemeral peer signals: one best-effort pass,
// no retry and no rebroadcast (a stale cursor position is worthless).
func (a *Actor) broadcastTransient(env protocol.Envelope, origin string) {
	if a.registry.Size() == 0 {
		return
	}

	data, err := env.Encode()
	if err != nil {
		slog.Error("Failed to encode peer signal",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", err)
		return
	}

	a.registry.ForEach(func(s *session.Session) {
		if s.ClientID == origin || s.State() != session.Ready {
			return
		}
		s.TrySend(data)
	})
	metrics.BroadcastsTotal.WithLabelValues("transient").Inc()
}

// deliver runs one delivery pass and returns the handles that should be
// retried: ready sessions whose send failed and sessions still joining.
// Sessions already closing or closed are pruned immediately.
func (a *Actor) deliver(data []byte, origin string, phase string) []uuid.UUID {
	var pending []uuid.UUID

	a.registry.ForEach(func(s *session.Session) {
		if s.ClientID == origin {
			return
		}
		switch s.State() {
		case session.Ready:
			if !s.TrySend(data) {
				pending = append(pending, s.Handle)
			}
		case session.Joining:
			pending = append(pending, s.Handle)
		case session.Closing, session.Closed:
			a.removeSession(s, "connection closed")
		}
	})

	metrics.BroadcastsTotal.WithLabelValues(phase).Inc()
	return pending
}

// handleRetry is the single retry pass for sessions that missed the first
// delivery. Sessions now ready get the message; sessions that are neither
// ready nor still joining, and ready sessions that fail again, are removed
// as dead. Sessions removed since scheduling are simply skipped.
func (a *Actor) handleRetry(c retryBroadcastCmd) {
	for _, handle := range c.pending {
		s := a.registry.Get(handle)
		if s == nil {
			continue
		}
		switch s.State() {
		case session.Ready:
			if !s.TrySend(c.data) {
				a.pruneDead(s)
			}
		case session.Joining:
			// Still mid-handshake; the rebroadcast sweep is its last chance.
		default:
			a.pruneDead(s)
		}
	}
	metrics.BroadcastsTotal.WithLabelValues("retry").Inc()
}

// handleRebroadcast resends the same already-ordered bytes to every session
// ready at this later time. Duplicate delivery is the accepted cost; clients
// replace by latest state.
func (a *Actor) handleRebroadcast(c rebroadcastCmd) {
	a.registry.ForEach(func(s *session.Session) {
		if s.ClientID == c.origin || s.State() != session.Ready {
			return
		}
		s.TrySend(c.data)
	})
	metrics.BroadcastsTotal.WithLabelValues("rebroadcast").Inc()
}

func (a *Actor) pruneDead(s *session.Session) {
	slog.Warn("Pruning dead session",
		"kind", a.opts.Kind, "entity_key", a.opts.Key, "client_id", s.ClientID)
	metrics.DeadSessionsPruned.Inc()
	a.removeSession(s, "unresponsive connection")

	if a.registry.Size() == 0 && a.opts.OnEmpty != nil {
		go a.opts.OnEmpty(a.opts.Key)
	}
}
