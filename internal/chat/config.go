package chat

import (
	"fmt"
	"log/slog"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds the server's runtime settings, read from the environment.
type Config struct {
	ListenAddr    string `env:"LISTEN_ADDR,default=:4445"`
	WSAddr        string `env:"WS_ADDR,default=:4446"`
	MetricsAddr   string `env:"METRICS_ADDR,default=:9090"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	OutBufferSize int    `env:"OUT_BUFFER_SIZE,default=64"`
}

// LoadConfig reads the environment, loading a .env file first when one is
// present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: LISTEN_ADDR must not be empty")
	}
	if c.OutBufferSize <= 0 {
		return fmt.Errorf("config: OUT_BUFFER_SIZE must be positive, got %d", c.OutBufferSize)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("config: unknown LOG_LEVEL %q", c.LogLevel)
	}
}

// SlogLevel maps the configured level name onto slog's.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
