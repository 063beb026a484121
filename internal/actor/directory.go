package actor

import (
	"sync"

	"github.com/pscheid92/collabcast/internal/logging"
	"github.com/pscheid92/collabcast/internal/metrics"
)

// HandlerFactory builds the domain handler for a freshly instantiated actor.
type HandlerFactory func(key string) Handler

// Directory maps entity keys to exactly one live actor each, creating
// actors on demand and evicting them once their last session leaves.
type Directory struct {
	mu      sync.Mutex
	actors  map[string]*Actor
	factory HandlerFactory
	opts    Options
}

// NewDirectory creates a directory. opts.Key and opts.OnEmpty are set per
// actor; the remaining options apply to every actor the directory creates.
func NewDirectory(factory HandlerFactory, opts Options) *Directory {
	return &Directory{
		actors:  make(map[string]*Actor),
		factory: factory,
		opts:    opts,
	}
}

// Get returns the live actor for a key, instantiating it cold if needed.
func (d *Directory) Get(key string) *Actor {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, exists := d.actors[key]; exists {
		return a
	}

	opts := d.opts
	opts.Key = key
	opts.OnEmpty = d.evict

	a := New(d.factory(key), opts)
	d.actors[key] = a
	metrics.ActiveActors.WithLabelValues(opts.Kind).Set(float64(len(d.actors)))
	logging.WithEntity(key).Info("Actor instantiated", "kind", opts.Kind)
	return a
}

// evict removes and stops the actor for a key once it has no sessions. A
// session that joined between the emptiness check and the stop gets
// ErrStopped and re-resolves through Get, which instantiates a fresh actor
// that rehydrates from storage.
func (d *Directory) evict(key string) {
	d.mu.Lock()
	a, exists := d.actors[key]
	if !exists {
		d.mu.Unlock()
		return
	}
	if count := a.SessionCount(); count != 0 {
		d.mu.Unlock()
		return
	}
	delete(d.actors, key)
	metrics.ActiveActors.WithLabelValues(d.opts.Kind).Set(float64(len(d.actors)))
	d.mu.Unlock()

	a.Stop()
	logging.WithEntity(key).Info("Actor evicted", "kind", d.opts.Kind)
}

// Stop shuts down every live actor. Used during server shutdown.
func (d *Directory) Stop() {
	d.mu.Lock()
	actors := make([]*Actor, 0, len(d.actors))
	for _, a := range d.actors {
		actors = append(actors, a)
	}
	d.actors = make(map[string]*Actor)
	metrics.ActiveActors.WithLabelValues(d.opts.Kind).Set(0)
	d.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
}
