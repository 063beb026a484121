// Package redis wraps the go-redis client used for the canvas event log.
//
// All commands pass through two hooks: MetricsHook (operation counts and
// latencies) and CircuitBreakerHook (fail-fast when Redis is down, so canvas
// actors keep serving from their in-memory working copy).
package redis
