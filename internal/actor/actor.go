package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/collabcast/internal/session"
)

const (
	commandTimeout = 5 * time.Second
	mutateTimeout  = 2 * time.Second
	initTimeout    = 10 * time.Second
	mailboxSize    = 256
)

// ErrStopped is returned by public methods once the actor has shut down.
var ErrStopped = errors.New("actor stopped")

// Change is the committed result of one mutation.
type Change struct {
	// Payload is the serialized change sent to clients and returned to the
	// mutation caller.
	Payload json.RawMessage
	// Batchable changes are coalesced into one message per batch window.
	Batchable bool
	// Priority changes bypass batching and are broadcast immediately.
	Priority bool
	// Origin is the clientID that caused the change; its own sessions are
	// skipped on delivery. Empty means deliver to everyone.
	Origin string
}

// Handler implements the domain side of one actor. All methods are called
// only from the actor's run loop, so implementations need no locking.
type Handler interface {
	// Init rehydrates state from durable storage. Called once before the
	// first command is processed. An error leaves the actor serving from
	// empty state.
	Init(ctx context.Context) error
	// Snapshot returns the full-state payload for init_state.
	Snapshot() (json.RawMessage, error)
	// Mutate applies one logical mutation and returns the committed change.
	Mutate(ctx context.Context, op json.RawMessage) (*Change, error)
	// Close releases the handler's resources when the actor stops.
	Close() error
}

// Options configures one actor instance.
type Options struct {
	Kind             string
	Key              string
	Clock            clockwork.Clock
	BatchWindow      time.Duration
	RetryDelay       time.Duration
	RebroadcastDelay time.Duration
	MaxClients       int
	// AnnouncePresence controls whether leaves synthesize a peer_signal so
	// other sessions can clear that peer's ephemeral indicators.
	AnnouncePresence bool
	// OnEmpty is called (on its own goroutine) after the last session
	// leaves, so the directory can evict the actor.
	OnEmpty func(key string)
}

// JoinResult is handed back to the transport layer after a join.
type JoinResult struct {
	Handle   uuid.UUID
	ClientID string
	Color    string
}

// Actor owns the state and sessions of one entity key.
type Actor struct {
	opts     Options
	handler  Handler
	clock    clockwork.Clock
	cmdCh    chan command
	registry *session.Registry

	// Run-loop state. Touched only by run().
	ready        bool
	pendingJoins []pendingJoin
	pendingWork  []command
	batch        pendingBatch

	done chan struct{}
}

// New creates an actor and starts its run loop. The handler's Init runs in
// the background; joins arriving before it finishes are queued and answered
// as soon as the actor is ready (or served from empty state on init failure).
func New(handler Handler, opts Options) *Actor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	a := &Actor{
		opts:     opts,
		handler:  handler,
		clock:    opts.Clock,
		cmdCh:    make(chan command, mailboxSize),
		registry: session.NewRegistry(),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Key returns the entity key this actor owns.
func (a *Actor) Key() string {
	return a.opts.Key
}

// Join registers a new session and sends it the current snapshot followed by
// its client_init. Blocks until the join is processed or times out.
func (a *Actor) Join(clientID string, writer *session.Writer) (JoinResult, error) {
	replyCh := make(chan joinReply, 1)
	if err := a.send(joinCmd{clientID: clientID, writer: writer, replyCh: replyCh}); err != nil {
		return JoinResult{}, err
	}

	timer := a.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.result, reply.err
	case <-a.done:
		return JoinResult{}, ErrStopped
	case <-timer.Chan():
		return JoinResult{}, fmt.Errorf("join timed out after %v", commandTimeout)
	}
}

// Leave removes a session. Idempotent; unknown handles are ignored.
func (a *Actor) Leave(handle uuid.UUID) {
	_ = a.send(leaveCmd{handle: handle})
}

// Mutate applies one mutation and returns the committed change payload.
// Broadcasting is fire-and-forget relative to this call.
func (a *Actor) Mutate(origin string, op json.RawMessage) (json.RawMessage, error) {
	replyCh := make(chan mutateReply, 1)
	if err := a.send(mutateCmd{origin: origin, op: op, replyCh: replyCh}); err != nil {
		return nil, err
	}

	timer := a.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.payload, reply.err
	case <-a.done:
		return nil, ErrStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("mutate timed out after %v", commandTimeout)
	}
}

// Signal broadcasts an ephemeral peer event (e.g. a cursor position) from
// the given client. Never persisted, never retried.
func (a *Actor) Signal(clientID string, data json.RawMessage) {
	_ = a.send(signalCmd{clientID: clientID, data: data})
}

// Snapshot returns the current full-state payload, for the HTTP fallback.
func (a *Actor) Snapshot() (json.RawMessage, error) {
	replyCh := make(chan snapshotReply, 1)
	if err := a.send(snapshotCmd{replyCh: replyCh}); err != nil {
		return nil, err
	}

	timer := a.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.payload, reply.err
	case <-a.done:
		return nil, ErrStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("snapshot timed out after %v", commandTimeout)
	}
}

// SessionCount returns the number of live sessions, or -1 on timeout.
func (a *Actor) SessionCount() int {
	replyCh := make(chan int, 1)
	if err := a.send(sessionCountCmd{replyCh: replyCh}); err != nil {
		return 0
	}

	timer := a.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-a.done:
		return 0
	case <-timer.Chan():
		return -1
	}
}

// Stop shuts the actor down, closing all sessions. Blocks until the run
// loop has exited.
func (a *Actor) Stop() {
	if err := a.send(stopCmd{}); err != nil {
		return
	}
	<-a.done
}

func (a *Actor) send(cmd command) error {
	select {
	case a.cmdCh <- cmd:
		return nil
	case <-a.done:
		return ErrStopped
	}
}
