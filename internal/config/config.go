package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// DataDir holds one SQLite database file per user for the notes actors.
	DataDir string `env:"DATA_DIR" default:"./data"`

	// RedisURL enables durable backing for canvas event logs when set.
	RedisURL string `env:"REDIS_URL"`

	// Broadcast timing. Short retry for transiently failed sends, a longer
	// rebroadcast sweep for clients whose reconnect lands after the first
	// delivery window, and an animation-frame-scale batch window.
	BatchWindow      time.Duration `env:"BATCH_WINDOW" default:"16ms"`
	RetryDelay       time.Duration `env:"RETRY_DELAY" default:"500ms"`
	RebroadcastDelay time.Duration `env:"REBROADCAST_DELAY" default:"2s"`

	// CanvasRetention bounds the per-room event log; the oldest events are
	// trimmed past this count.
	CanvasRetention int `env:"CANVAS_RETENTION" default:"1000"`

	MaxClientsPerEntity     int `env:"MAX_CLIENTS_PER_ENTITY" default:"50"`
	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int `env:"MAX_CONNECTIONS_PER_IP" default:"20"`

	// InboundMessageRate limits client-to-actor frames per second per
	// connection (burst is twice the rate).
	InboundMessageRate float64 `env:"INBOUND_MESSAGE_RATE" default:"60"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if cfg.BatchWindow <= 0 {
		return fmt.Errorf("BATCH_WINDOW must be positive")
	}
	if cfg.RetryDelay <= 0 {
		return fmt.Errorf("RETRY_DELAY must be positive")
	}
	if cfg.RebroadcastDelay < cfg.RetryDelay {
		return fmt.Errorf("REBROADCAST_DELAY must not be shorter than RETRY_DELAY")
	}
	if cfg.CanvasRetention <= 0 {
		return fmt.Errorf("CANVAS_RETENTION must be positive")
	}
	if cfg.MaxClientsPerEntity <= 0 {
		return fmt.Errorf("MAX_CLIENTS_PER_ENTITY must be positive")
	}
	if cfg.InboundMessageRate <= 0 {
		return fmt.Errorf("INBOUND_MESSAGE_RATE must be positive")
	}
	return nil
}
