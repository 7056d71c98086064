// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Session client kinds.
const (
	ServiceGitHub  = "github"
	ServiceGateway = "gateway"
)

const appDirName = "tokenlink"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DataDir        string        `env:"TOKENLINK_DATA_DIR"`
	ListenAddr     string        `env:"TOKENLINK_LISTEN_ADDR" default:"127.0.0.1:8080"`
	Service        string        `env:"TOKENLINK_SERVICE" default:"github"`
	GatewayURL     string        `env:"TOKENLINK_GATEWAY_URL"`
	GitHubAPIURL   string        `env:"TOKENLINK_GITHUB_API_URL"`
	HealthInterval time.Duration `env:"TOKENLINK_HEALTH_INTERVAL" default:"30s"`
	ReconnectDelay time.Duration `env:"TOKENLINK_RECONNECT_DELAY" default:"5s"`
	MaxRetries     int           `env:"TOKENLINK_MAX_RETRIES" default:"3"`
	SecretKey      string        `env:"TOKENLINK_SECRET_KEY"`
	LogLevel       string        `env:"TOKENLINK_LOG_LEVEL" default:"info"`
	LogFormat      string        `env:"TOKENLINK_LOG_FORMAT" default:"text"`
}

// Load reads an optional .env file, then configuration from environment
// variables, and returns a validated Config. TOKENLINK_DATA_DIR defaults to
// a tokenlink directory under the user's config directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("TOKENLINK_DATA_DIR is unset and no user config directory is available: %w", err)
		}
		cfg.DataDir = filepath.Join(base, appDirName)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	cfg.Service = strings.ToLower(strings.TrimSpace(cfg.Service))
	switch cfg.Service {
	case ServiceGitHub:
	case ServiceGateway:
		if cfg.GatewayURL == "" {
			return errors.New("TOKENLINK_GATEWAY_URL is required when TOKENLINK_SERVICE is gateway")
		}
		if !strings.HasPrefix(cfg.GatewayURL, "ws://") && !strings.HasPrefix(cfg.GatewayURL, "wss://") {
			return fmt.Errorf("TOKENLINK_GATEWAY_URL must start with ws:// or wss://, got %q", cfg.GatewayURL)
		}
	default:
		return fmt.Errorf("TOKENLINK_SERVICE must be %q or %q, got %q", ServiceGitHub, ServiceGateway, cfg.Service)
	}

	if cfg.HealthInterval < time.Second {
		return fmt.Errorf("TOKENLINK_HEALTH_INTERVAL must be at least 1s, got %s", cfg.HealthInterval)
	}
	if cfg.ReconnectDelay <= 0 {
		return fmt.Errorf("TOKENLINK_RECONNECT_DELAY must be positive, got %s", cfg.ReconnectDelay)
	}
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("TOKENLINK_MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}

	if cfg.SecretKey != "" {
		keyBytes, err := hex.DecodeString(cfg.SecretKey)
		if err != nil {
			return fmt.Errorf("TOKENLINK_SECRET_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("TOKENLINK_SECRET_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("TOKENLINK_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return nil
}

// EncryptionKey returns the decoded TOKENLINK_SECRET_KEY, or nil when the
// credential is stored in plaintext.
func (c *Config) EncryptionKey() []byte {
	if c.SecretKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil
	}
	return key
}

// NewLogger builds the application logger from the configured level and
// format, writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("TOKENLINK_LOG_LEVEL must be debug, info, warn or error, got %q", level)
	}
}
