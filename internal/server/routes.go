package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Notes REST fallback for non-realtime callers
	s.echo.GET("/api/notes", s.handleListNotes)
	s.echo.POST("/api/notes", s.handleCreateNote)
	s.echo.PUT("/api/notes/:id", s.handleUpdateNote)
	s.echo.DELETE("/api/notes/:id", s.handleDeleteNote)

	// Canvas REST fallback
	s.echo.GET("/api/canvas/:room/events", s.handleCanvasEvents)

	// WebSocket entry points
	s.echo.GET("/ws/notes", s.handleNotesSocket)
	s.echo.GET("/ws/canvas/:room", s.handleCanvasSocket)
}
