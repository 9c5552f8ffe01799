// Package config loads runtime configuration from environment variables
// (optionally backed by a .env file), per spec.md §6.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the monitor.
type Config struct {
	Server  ServerConfig
	Claude  ClaudeConfig
	Push    PushConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// ServerConfig contains network-level settings for the HTTP listener.
type ServerConfig struct {
	Host        string
	Port        int
	PublicDir   string
	ReadTimeout time.Duration
}

// ClaudeConfig controls the collector's view of the tailed assistant
// directory.
type ClaudeConfig struct {
	Home          string
	PollInterval  time.Duration
	BackfillLines int
}

// PushConfig controls push-endpoint auth and throttling.
type PushConfig struct {
	APIKey    string
	RateRPS   float64
	RateBurst int
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	ListenAddr string // empty => serve on the main HTTP listener
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from environment variables (after a best-effort
// .env load), applying the defaults documented in spec.md §6.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 5050)
	v.SetDefault("public_dir", "public")
	v.SetDefault("http_read_timeout_sec", 5)

	v.SetDefault("claude_home", defaultClaudeHome())
	v.SetDefault("claude_poll_ms", 2500)
	v.SetDefault("claude_backfill_lines", 25)

	v.SetDefault("monitor_api_key", "")
	v.SetDefault("push_rate_limit_rps", 20)
	v.SetDefault("push_rate_limit_burst", 40)

	v.SetDefault("metrics_addr", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	v.AutomaticEnv()

	cfg := Config{
		Server: ServerConfig{
			Host:        v.GetString("host"),
			Port:        v.GetInt("port"),
			PublicDir:   v.GetString("public_dir"),
			ReadTimeout: time.Duration(v.GetInt("http_read_timeout_sec")) * time.Second,
		},
		Claude: ClaudeConfig{
			Home:          v.GetString("claude_home"),
			PollInterval:  time.Duration(v.GetInt("claude_poll_ms")) * time.Millisecond,
			BackfillLines: v.GetInt("claude_backfill_lines"),
		},
		Push: PushConfig{
			APIKey:    v.GetString("monitor_api_key"),
			RateRPS:   v.GetFloat64("push_rate_limit_rps"),
			RateBurst: v.GetInt("push_rate_limit_burst"),
		},
		Metrics: MetricsConfig{
			ListenAddr: v.GetString("metrics_addr"),
		},
		Logging: LoggingConfig{
			Level:       v.GetString("log_level"),
			Development: v.GetBool("log_development"),
		},
	}

	return cfg, nil
}

func defaultClaudeHome() string {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}
	if home == "" {
		return "."
	}
	return filepath.Join(home, ".claude")
}
