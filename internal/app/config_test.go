package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/database"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.Client.APIBaseURL)
	require.Equal(t, "file-token", cfg.Client.Token)
	require.Equal(t, 5*time.Second, cfg.Client.Timeout)
	require.Equal(t, "debug", cfg.Client.LogLevel)

	require.Equal(t, 3*time.Second, cfg.Realtime.HandshakeTimeout)
	require.True(t, cfg.Realtime.Reconnect.Enabled)
	require.Equal(t, 500*time.Millisecond, cfg.Realtime.Reconnect.BaseDelay)
	require.Equal(t, 4, cfg.Realtime.Reconnect.MaxAttempts)

	require.Equal(t, "@every 30s", cfg.Reconcile.Unread)
	require.Equal(t, "*/5 * * * *", cfg.Reconcile.Notifications)

	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Server.Seed)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, "require", cfg.Database.Postgres.Options["sslmode"])

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "/internal/metrics", cfg.Metrics.Endpoint)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000", cfg.Client.APIBaseURL)
	require.Equal(t, 30*time.Second, cfg.Client.Timeout)
	require.False(t, cfg.Realtime.Reconnect.Enabled)
	require.Equal(t, "@every 1m", cfg.Reconcile.Unread)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TIDYLINK_CLIENT_TOKEN", "env-token")
	t.Setenv("TIDYLINK_SERVER_PORT", "7000")

	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Client.Token)
	require.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("TIDYLINK_DATABASE_DRIVER", "oracle")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "driver")
}

func TestValidateEndpoint(t *testing.T) {
	cfg := Config{
		Client:   ClientConfig{APIBaseURL: "ftp://example.com"},
		Database: DatabaseConfig{Driver: "sqlite"},
	}
	require.Error(t, cfg.Validate())

	cfg.Client.APIBaseURL = "localhost:8000"
	require.NoError(t, cfg.Validate())
}

func TestAuthConfigAdapter(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "secret", Issuer: "issuer", TTL: 30 * time.Minute}}
	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestRealtimeClientConfig(t *testing.T) {
	cfg := Config{Client: ClientConfig{APIBaseURL: "https://api.example.com"}}

	rt := cfg.RealtimeClientConfig()
	require.Equal(t, "https://api.example.com", rt.BaseURL)
	require.Equal(t, 10*time.Second, rt.HandshakeTimeout)
	require.Nil(t, rt.Reconnect)

	cfg.Client.WSBaseURL = "wss://rt.example.com"
	cfg.Realtime.Reconnect = ReconnectConfig{Enabled: true, MaxAttempts: 3, Jitter: 0.5}
	rt = cfg.RealtimeClientConfig()
	require.Equal(t, "wss://rt.example.com", rt.BaseURL)
	require.NotNil(t, rt.Reconnect)
	require.Equal(t, time.Second, rt.Reconnect.BaseDelay)
	require.Equal(t, 30*time.Second, rt.Reconnect.MaxDelay)
	require.Equal(t, 3, rt.Reconnect.MaxAttempts)
	require.Equal(t, 0.5, rt.Reconnect.Jitter)
}

func TestDatabaseOptions(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "mysql",
		MySQL:  DBAuthConfig{Host: "db", Port: 3307, Database: "tidy", Username: "u", Password: "p"},
	}
	require.Equal(t, database.Config{
		Driver:   "mysql",
		Host:     "db",
		Port:     3307,
		Name:     "tidy",
		User:     "u",
		Password: "p",
	}, cfg.DatabaseOptions())

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "x.db"}
	require.Equal(t, database.Config{Driver: "sqlite", Path: "x.db"}, sqlite.DatabaseOptions())
}
