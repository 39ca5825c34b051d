package app

import (
	"strings"
	"time"

	"github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/database"
	"github.com/charlesng35/tidylink/internal/realtime"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// Policy returns the reconnect policy, or nil when reconnecting is disabled.
func (c ReconnectConfig) Policy() *realtime.ReconnectPolicy {
	if !c.Enabled {
		return nil
	}

	policy := realtime.DefaultReconnectPolicy()
	if c.BaseDelay > 0 {
		policy.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		policy.MaxDelay = c.MaxDelay
	}
	policy.MaxAttempts = c.MaxAttempts
	policy.Jitter = c.Jitter
	return policy
}

// RealtimeClientConfig builds the chat socket configuration. The socket base
// falls back to the REST base URL when no explicit ws_base_url is set.
func (c Config) RealtimeClientConfig() realtime.Config {
	base := strings.TrimSpace(c.Client.WSBaseURL)
	if base == "" {
		base = c.Client.APIBaseURL
	}

	handshake := c.Realtime.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}

	return realtime.Config{
		BaseURL:          base,
		HandshakeTimeout: handshake,
		Reconnect:        c.Realtime.Reconnect.Policy(),
	}
}

// DatabaseOptions converts DatabaseConfig into connection options for the selected driver.
func (c DatabaseConfig) DatabaseOptions() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var host DBAuthConfig
	switch strings.ToLower(c.Driver) {
	case "postgres":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Options = host.Options
	return cfg
}
