// Package actor implements the per-entity actor runtime: a single goroutine
// per entity key consuming a typed command channel, owning the session
// registry, the broadcast engine with retry and rebroadcast sweep, and the
// batching scheduler. Domain behavior (notes, canvas) plugs in through the
// Handler interface.
package actor
