package config

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every TOKENLINK_ env var that Load() reads.
var allConfigKeys = []string{
	"TOKENLINK_DATA_DIR",
	"TOKENLINK_LISTEN_ADDR",
	"TOKENLINK_SERVICE",
	"TOKENLINK_GATEWAY_URL",
	"TOKENLINK_GITHUB_API_URL",
	"TOKENLINK_HEALTH_INTERVAL",
	"TOKENLINK_RECONNECT_DELAY",
	"TOKENLINK_MAX_RETRIES",
	"TOKENLINK_SECRET_KEY",
	"TOKENLINK_LOG_LEVEL",
	"TOKENLINK_LOG_FORMAT",
}

const validKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// isolateConfigEnv saves and unsets all TOKENLINK_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("TOKENLINK_DATA_DIR", "/tmp/tokenlink-test")
	t.Setenv("TOKENLINK_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("TOKENLINK_SERVICE", "gateway")
	t.Setenv("TOKENLINK_GATEWAY_URL", "wss://gateway.example.com/ws")
	t.Setenv("TOKENLINK_HEALTH_INTERVAL", "1m")
	t.Setenv("TOKENLINK_RECONNECT_DELAY", "10s")
	t.Setenv("TOKENLINK_MAX_RETRIES", "5")
	t.Setenv("TOKENLINK_SECRET_KEY", validKey)
	t.Setenv("TOKENLINK_LOG_LEVEL", "debug")
	t.Setenv("TOKENLINK_LOG_FORMAT", "json")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/tokenlink-test", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, ServiceGateway, cfg.Service)
	assert.Equal(t, "wss://gateway.example.com/ws", cfg.GatewayURL)
	assert.Equal(t, time.Minute, cfg.HealthInterval)
	assert.Equal(t, 10*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Len(t, cfg.EncryptionKey(), 32)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	t.Setenv("HOME", "/tmp/home-test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(cfg.DataDir, "tokenlink"), "data dir %q", cfg.DataDir)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, ServiceGitHub, cfg.Service)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Nil(t, cfg.EncryptionKey())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_ServiceIsCaseInsensitive(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("TOKENLINK_DATA_DIR", t.TempDir())
	t.Setenv("TOKENLINK_SERVICE", " GitHub ")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ServiceGitHub, cfg.Service)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown service",
			env:     map[string]string{"TOKENLINK_SERVICE": "irc"},
			wantErr: "TOKENLINK_SERVICE must be",
		},
		{
			name:    "gateway without url",
			env:     map[string]string{"TOKENLINK_SERVICE": "gateway"},
			wantErr: "TOKENLINK_GATEWAY_URL is required",
		},
		{
			name:    "gateway with http url",
			env:     map[string]string{"TOKENLINK_SERVICE": "gateway", "TOKENLINK_GATEWAY_URL": "http://example.com"},
			wantErr: "TOKENLINK_GATEWAY_URL must start with ws:// or wss://",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"TOKENLINK_RECONNECT_DELAY": "soon"},
			wantErr: "failed to load environment variables",
		},
		{
			name:    "zero reconnect delay",
			env:     map[string]string{"TOKENLINK_RECONNECT_DELAY": "0s"},
			wantErr: "TOKENLINK_RECONNECT_DELAY must be positive",
		},
		{
			name:    "short health interval",
			env:     map[string]string{"TOKENLINK_HEALTH_INTERVAL": "10ms"},
			wantErr: "TOKENLINK_HEALTH_INTERVAL must be at least 1s",
		},
		{
			name:    "zero retries",
			env:     map[string]string{"TOKENLINK_MAX_RETRIES": "0"},
			wantErr: "TOKENLINK_MAX_RETRIES must be at least 1",
		},
		{
			name:    "non-hex key",
			env:     map[string]string{"TOKENLINK_SECRET_KEY": "not-hex"},
			wantErr: "TOKENLINK_SECRET_KEY must be valid hex",
		},
		{
			name:    "short key",
			env:     map[string]string{"TOKENLINK_SECRET_KEY": "abcd"},
			wantErr: "TOKENLINK_SECRET_KEY must be exactly 64 hex characters",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"TOKENLINK_LOG_LEVEL": "verbose"},
			wantErr: "TOKENLINK_LOG_LEVEL must be",
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"TOKENLINK_LOG_FORMAT": "xml"},
			wantErr: "TOKENLINK_LOG_FORMAT must be text or json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("TOKENLINK_DATA_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "debug", LogFormat: "text"}

	cfg.NewLogger(&buf).Debug("probe", "attempt", 1)

	assert.Contains(t, buf.String(), "msg=probe")
	assert.Contains(t, buf.String(), "attempt=1")
}
