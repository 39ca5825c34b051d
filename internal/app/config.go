package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/tidylink/pkg/validator"
)

// Config represents the runtime configuration shared by the CLI and the dev backend.
type Config struct {
	Client    ClientConfig    `mapstructure:"client"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ClientConfig configures the REST client used by the CLI.
type ClientConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" validate:"required,endpoint"`
	WSBaseURL  string        `mapstructure:"ws_base_url" validate:"omitempty,endpoint"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	LogLevel   string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// RealtimeConfig configures chat sockets.
type RealtimeConfig struct {
	HandshakeTimeout time.Duration   `mapstructure:"handshake_timeout" validate:"gte=0"`
	Reconnect        ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig controls the optional reconnect policy. Disabled means a
// dropped socket stays closed.
type ReconnectConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=0"`
	Jitter      float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// ReconcileConfig schedules the periodic authoritative refresh.
type ReconcileConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Unread        string `mapstructure:"unread_schedule" validate:"required_if=Enabled true"`
	Notifications string `mapstructure:"notifications_schedule"`
}

// ServerConfig configures the dev backend HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Seed     bool   `mapstructure:"seed"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures token settings for the dev backend.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl" validate:"gte=0"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,startswith=/"`
}

// LoadConfig initialises configuration using Viper with sensible defaults. Files
// named config.yaml are searched in ./config and then in paths; environment
// variables prefixed with TIDYLINK_ override both.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("TIDYLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the decoded configuration.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.api_base_url", "http://localhost:8000")
	v.SetDefault("client.ws_base_url", "")
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.log_level", "info")

	v.SetDefault("realtime.handshake_timeout", "10s")
	v.SetDefault("realtime.reconnect.enabled", false)
	v.SetDefault("realtime.reconnect.base_delay", "1s")
	v.SetDefault("realtime.reconnect.max_delay", "30s")
	v.SetDefault("realtime.reconnect.max_attempts", 0)
	v.SetDefault("realtime.reconnect.jitter", 0.2)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.unread_schedule", "@every 1m")
	v.SetDefault("reconcile.notifications_schedule", "")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.seed", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tidylink.sqlite")

	v.SetDefault("auth.jwt.issuer", "tidylink")
	v.SetDefault("auth.jwt.access_token_ttl", "24h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
