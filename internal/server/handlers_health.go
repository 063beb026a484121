package server

import (
	"context"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/collabcast/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"data_dir", s.checkDataDir},
		{"redis", s.checkRedis},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) checkDataDir(_ context.Context) error {
	if err := os.MkdirAll(s.config.DataDir, 0o750); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}

func (s *Server) checkRedis(ctx context.Context) error {
	// Redis is optional; without it canvas history is memory-only.
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx)
}
