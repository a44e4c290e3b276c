// Package config loads the strategy engine's process configuration via
// viper: a config file (YAML/JSON/TOML, auto-detected), overridable by
// STRATEGY_ENGINE_-prefixed environment variables, layered over built-in
// defaults so the engine runs with zero configuration in development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the HTTP/SSE API surface (internal/api).
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxConnections int           `mapstructure:"max_connections"`
}

// SessionConfig governs internal/session's persistence and eviction policy.
type SessionConfig struct {
	PersistenceRoot string        `mapstructure:"persistence_root"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	EmitInterval    time.Duration `mapstructure:"emit_interval"`
}

// SchedulerConfig governs internal/scheduler's default run mode.
type SchedulerConfig struct {
	Mode            string  `mapstructure:"mode"` // "backtest" or "live"
	SpeedMultiplier float64 `mapstructure:"speed_multiplier"`
}

// MetricsConfig governs internal/metrics' prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig governs the zap logger construction shared by every package.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

// DataConfig points the F&O resolver and tick sources at their backing data.
type DataConfig struct {
	Dir              string `mapstructure:"dir"`
	ExpiryCalendarFile string `mapstructure:"expiry_calendar_file"`
}

// Config is the engine's full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Data      DataConfig      `mapstructure:"data"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_connections", 1000)

	v.SetDefault("session.persistence_root", "./data/sessions")
	v.SetDefault("session.idle_ttl", 60*time.Minute)
	v.SetDefault("session.emit_interval", time.Second)

	v.SetDefault("scheduler.mode", "backtest")
	v.SetDefault("scheduler.speed_multiplier", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")

	v.SetDefault("data.dir", "./data/market")
	v.SetDefault("data.expiry_calendar_file", "./data/expiry_calendar.json")
}

// Load reads configuration from configPath (if non-empty), falling back to
// ./config.yaml (and .json/.toml variants) in the working directory, then
// environment variables prefixed STRATEGY_ENGINE_ (nested keys separated by
// underscore, e.g. STRATEGY_ENGINE_SERVER_PORT), then the defaults above. A
// missing config file is not an error; a malformed one is.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRATEGY_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
