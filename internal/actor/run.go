package actor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/pscheid92/collabcast/internal/errors"
	"github.com/pscheid92/collabcast/internal/metrics"
	"github.com/pscheid92/collabcast/internal/protocol"
	"github.com/pscheid92/collabcast/internal/session"
)

// command is the mailbox message interface for the actor run loop.
type command interface{ isCommand() }

type baseCommand struct{}

func (baseCommand) isCommand() {}

type joinReply struct {
	result JoinResult
	err    error
}

type joinCmd struct {
	baseCommand
	clientID string
	writer   *session.Writer
	replyCh  chan joinReply
}

type leaveCmd struct {
	baseCommand
	handle uuid.UUID
}

type mutateReply struct {
	payload json.RawMessage
	err     error
}

type mutateCmd struct {
	baseCommand
	origin  string
	op      json.RawMessage
	replyCh chan mutateReply
}

type signalCmd struct {
	baseCommand
	clientID string
	data     json.RawMessage
}

type snapshotReply struct {
	payload json.RawMessage
	err     error
}

type snapshotCmd struct {
	baseCommand
	replyCh chan snapshotReply
}

type sessionCountCmd struct {
	baseCommand
	replyCh chan int
}

type initDoneCmd struct {
	baseCommand
	err error
}

type flushBatchCmd struct {
	baseCommand
}

type retryBroadcastCmd struct {
	baseCommand
	data    []byte
	origin  string
	pending []uuid.UUID
}

type rebroadcastCmd struct {
	baseCommand
	data   []byte
	origin string
}

type stopCmd struct {
	baseCommand
}

// pendingJoin pairs a queued join with the session registered for it while
// the actor is still rehydrating.
type pendingJoin struct {
	cmd joinCmd
	s   *session.Session
}

var errSessionClosed = errors.New("session closed before initialization finished")

func (a *Actor) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Actor panic recovered", "kind", a.opts.Kind, "entity_key", a.opts.Key, "panic", r)
			metrics.ActorPanicsTotal.Inc()
			a.closeAllSessions("actor panic")
		}
		close(a.done)
	}()

	// Rehydrate in the background so the mailbox keeps accepting commands;
	// joins and mutations queue until the one-shot readiness transition.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()
		err := a.handler.Init(ctx)
		select {
		case a.cmdCh <- initDoneCmd{err: err}:
		case <-a.done:
		}
	}()

	for cmd := range a.cmdCh {
		metrics.ActorMailboxDepth.WithLabelValues(a.opts.Kind).Set(float64(len(a.cmdCh)))

		switch c := cmd.(type) {
		case initDoneCmd:
			a.handleInitDone(c)
		case joinCmd:
			a.handleJoin(c)
		case leaveCmd:
			a.handleLeave(c.handle, "")
		case mutateCmd:
			// No mutation may apply before rehydration has finished.
			if !a.ready {
				a.pendingWork = append(a.pendingWork, c)
				continue
			}
			a.handleMutate(c)
		case signalCmd:
			a.handleSignal(c)
		case snapshotCmd:
			if !a.ready {
				a.pendingWork = append(a.pendingWork, c)
				continue
			}
			a.handleSnapshot(c)
		case sessionCountCmd:
			c.replyCh <- a.registry.Size()
		case flushBatchCmd:
			a.flushBatch()
		case retryBroadcastCmd:
			a.handleRetry(c)
		case rebroadcastCmd:
			a.handleRebroadcast(c)
		case stopCmd:
			a.handleStop()
			return
		}
	}
}

func (a *Actor) handleInitDone(c initDoneCmd) {
	if c.err != nil {
		// The actor still serves: joins get the current (empty) state and
		// later mutations may repopulate it.
		slog.Error("Actor rehydration failed, serving from empty state",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", c.err)
	}
	a.ready = true

	pending := a.pendingJoins
	a.pendingJoins = nil
	for _, join := range pending {
		// The session may have been removed while rehydration ran; the
		// caller still gets an answer instead of waiting out its timeout.
		if a.registry.Get(join.s.Handle) == nil {
			join.cmd.replyCh <- joinReply{err: errSessionClosed}
			continue
		}
		a.completeJoin(join.cmd, join.s)
	}

	work := a.pendingWork
	a.pendingWork = nil
	for _, cmd := range work {
		switch c := cmd.(type) {
		case mutateCmd:
			a.handleMutate(c)
		case snapshotCmd:
			a.handleSnapshot(c)
		}
	}
}

func (a *Actor) handleJoin(c joinCmd) {
	if a.opts.MaxClients > 0 && a.registry.Size() >= a.opts.MaxClients {
		slog.Warn("Rejecting session: max clients reached",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "max_clients", a.opts.MaxClients)
		metrics.ConnectionsRejectedTotal.WithLabelValues("entity_full").Inc()
		c.replyCh <- joinReply{err: apperrors.ForbiddenError("entity is at session capacity")}
		return
	}

	s := session.New(c.clientID, c.writer)
	a.registry.Add(s)
	metrics.ConnectedSessions.Inc()

	if !a.ready {
		// Registered in Joining state; snapshot follows once Init finishes.
		a.pendingJoins = append(a.pendingJoins, pendingJoin{cmd: c, s: s})
		return
	}

	a.completeJoin(c, s)
}

func (a *Actor) completeJoin(c joinCmd, s *session.Session) {
	snapshot, err := a.handler.Snapshot()
	if err != nil {
		slog.Error("Snapshot failed during join",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", err)
		snapshot = json.RawMessage("null")
	}

	initState, err := protocol.InitState(snapshot, a.clock.Now().UnixMilli()).Encode()
	if err == nil {
		s.TrySend(initState)
	}
	clientInit, err := protocol.ClientInit(s.ClientID, s.Color).Encode()
	if err == nil {
		s.TrySend(clientInit)
	}

	s.SetState(session.Ready)
	slog.Debug("Session joined",
		"kind", a.opts.Kind, "entity_key", a.opts.Key,
		"client_id", s.ClientID, "total_sessions", a.registry.Size())

	c.replyCh <- joinReply{result: JoinResult{Handle: s.Handle, ClientID: s.ClientID, Color: s.Color}}
}

func (a *Actor) handleLeave(handle uuid.UUID, reason string) {
	s := a.registry.Get(handle)
	if s == nil {
		return
	}

	a.removeSession(s, reason)

	if a.opts.AnnouncePresence {
		a.broadcastTransient(protocol.PeerSignal(s.ClientID, s.Color, json.RawMessage(`{"left":true}`)), s.ClientID)
	}

	if a.registry.Size() == 0 && a.opts.OnEmpty != nil {
		// On its own goroutine: the directory calls back into the actor.
		go a.opts.OnEmpty(a.opts.Key)
	}
}

// removeSession deletes the session from the registry and stops its writer.
func (a *Actor) removeSession(s *session.Session, reason string) {
	a.registry.Remove(s.Handle)
	if reason == "" {
		reason = "session closed"
	}
	s.Close(reason)
	metrics.ConnectedSessions.Dec()
	slog.Debug("Session removed",
		"kind", a.opts.Kind, "entity_key", a.opts.Key,
		"client_id", s.ClientID, "remaining_sessions", a.registry.Size())
}

func (a *Actor) handleMutate(c mutateCmd) {
	start := a.clock.Now()

	ctx, cancel := context.WithTimeout(context.Background(), mutateTimeout)
	change, err := a.handler.Mutate(ctx, c.op)
	cancel()

	metrics.MutationDuration.WithLabelValues(a.opts.Kind).Observe(a.clock.Since(start).Seconds())

	if err != nil {
		metrics.MutationsTotal.WithLabelValues(a.opts.Kind, "error").Inc()
		c.replyCh <- mutateReply{err: err}
		return
	}

	metrics.MutationsTotal.WithLabelValues(a.opts.Kind, "ok").Inc()
	if change == nil {
		c.replyCh <- mutateReply{}
		return
	}
	c.replyCh <- mutateReply{payload: change.Payload}

	// A committed mutation is always handed to the broadcast engine, even
	// with zero sessions attached (it then no-ops).
	if change.Origin == "" {
		change.Origin = c.origin
	}
	switch {
	case change.Priority:
		a.broadcast(protocol.Update(change.Payload, a.clock.Now().UnixMilli()), change.Origin)
	case change.Batchable:
		a.enqueueBatch(change)
	default:
		a.broadcast(protocol.Update(change.Payload, a.clock.Now().UnixMilli()), change.Origin)
	}
}

func (a *Actor) handleSignal(c signalCmd) {
	a.broadcastTransient(protocol.PeerSignal(c.clientID, session.ColorFor(c.clientID), c.data), c.clientID)
}

func (a *Actor) handleSnapshot(c snapshotCmd) {
	payload, err := a.handler.Snapshot()
	c.replyCh <- snapshotReply{payload: payload, err: err}
}

func (a *Actor) handleStop() {
	// Answer queued work before dropping it.
	for _, join := range a.pendingJoins {
		join.cmd.replyCh <- joinReply{err: ErrStopped}
	}
	a.pendingJoins = nil
	for _, cmd := range a.pendingWork {
		switch c := cmd.(type) {
		case mutateCmd:
			c.replyCh <- mutateReply{err: ErrStopped}
		case snapshotCmd:
			c.replyCh <- snapshotReply{err: ErrStopped}
		}
	}
	a.pendingWork = nil

	a.closeAllSessions("server shutting down")

	if err := a.handler.Close(); err != nil {
		slog.Error("Handler close failed",
			"kind", a.opts.Kind, "entity_key", a.opts.Key, "error", err)
	}

	slog.Info("Actor stopped", "kind", a.opts.Kind, "entity_key", a.opts.Key)
}

func (a *Actor) closeAllSessions(reason string) {
	for _, s := range a.registry.Drain() {
		s.Close(reason)
		metrics.ConnectedSessions.Dec()
	}
}
