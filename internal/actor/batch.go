package actor

import (
	"encoding/json"
	"log/slog"

	"github.com/pscheid92/collabcast/internal/metrics"
	"github.com/pscheid92/collabcast/internal/protocol"
)

// pendingBatch coalesces batchable changes into one outbound message per
// batch window. At most one flush timer is outstanding per actor: a change
// arriving while the timer runs only appends.
type pendingBatch struct {
	changes  []json.RawMessage
	origin   string
	mixed    bool
	timerSet bool
}

// enqueueBatch appends a change and arms the flush timer if none is set.
// Called only from the run loop.
func (a *Actor) enqueueBatch(change *Change) {
	a.batch.changes = append(a.batch.changes, change.Payload)

	// Echo suppression only holds while every change in the batch shares
	// one origin; a mixed batch goes to everyone.
	if len(a.batch.changes) == 1 {
		a.batch.origin = change.Origin
	} else if a.batch.origin != change.Origin {
		a.batch.mixed = true
	}

	if !a.batch.timerSet {
		a.batch.timerSet = true
		a.clock.AfterFunc(a.opts.BatchWindow, func() {
			_ = a.send(flushBatchCmd{})
		})
	}
}

// flushBatch swaps out the pending batch and broadcasts it as a single
// events message, preserving append order.
func (a *Actor) flushBatch() {
	changes := a.batch.changes
	origin := a.batch.origin
	if a.batch.mixed {
		origin = ""
	}
	a.batch = pendingBatch{}

	if len(changes) == 0 {
		return
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		slog.Error("Failed to encode batch",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", err)
		return
	}

	metrics.BatchFlushesTotal.Inc()
	metrics.BatchSize.Observe(float64(len(changes)))

	a.broadcast(protocol.Events(payload, a.clock.Now().UnixMilli()), origin)
}
