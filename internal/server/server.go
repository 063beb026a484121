package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/collabcast/internal/actor"
	"github.com/pscheid92/collabcast/internal/config"
	apperrors "github.com/pscheid92/collabcast/internal/errors"
	"github.com/pscheid92/collabcast/internal/redis"
)

// connectionRateLimit bounds new WebSocket connections per IP per second.
const (
	connectionRatePerSecond = 10.0
	connectionRateBurst     = 10
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	clock     clockwork.Clock
	notes     *actor.Directory
	canvas    *actor.Directory
	redis     *redis.Client
	limits    *ConnectionLimits
	startTime time.Time
}

// NewServer wires the HTTP surface over the two actor directories. The
// Redis client is nil when no Redis URL is configured; readiness then skips
// the Redis check.
func NewServer(cfg *config.Config, notes, canvas *actor.Directory, redisClient *redis.Client, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:   e,
		config: cfg,
		clock:  clock,
		notes:  notes,
		canvas: canvas,
		redis:  redisClient,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			connectionRatePerSecond,
			connectionRateBurst,
		),
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
