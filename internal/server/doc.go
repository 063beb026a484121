// Package server implements the HTTP server using Echo framework.
//
// Routes: health/metrics, notes REST fallback (/api/notes), canvas REST
// fallback (/api/canvas/:room/events), WebSocket entry points (/ws/notes,
// /ws/canvas/:room). Handlers split by concern: handlers_health.go,
// handlers_api.go, handlers_ws.go.
package server
