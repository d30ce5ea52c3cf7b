package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

// Config controls a load test run.
type Config struct {
	// Requests is the total number of requests issued.
	Requests int `mapstructure:"requests"`
	// Workers is the number of scoped requesters issuing requests concurrently.
	Workers int `mapstructure:"workers"`
	// Servers is the number of replying actors; requests are spread round robin.
	Servers int `mapstructure:"servers"`
	// Timeout is the per-request timeout; 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxDelay bounds the random reply delay of the servers.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// DropRate is the fraction of requests the servers never answer.
	DropRate float64 `mapstructure:"drop_rate"`
	// HighPriorityRate is the fraction of requests sent with high priority.
	HighPriorityRate float64 `mapstructure:"high_priority_rate"`
	// Codec is the content type requests are encoded with.
	Codec string `mapstructure:"codec"`
	// MailboxSize is the per-lane mailbox capacity of the servers.
	MailboxSize int `mapstructure:"mailbox_size"`
	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: text or json
	Format string `mapstructure:"format"`
}

func defaultConfig() Config {
	return Config{
		Requests:         50_000,
		Workers:          32,
		Servers:          4,
		Timeout:          50 * time.Millisecond,
		MaxDelay:         20 * time.Millisecond,
		DropRate:         0.01,
		HighPriorityRate: 0.1,
		Codec:            codec.ContentTypeJSON,
		MailboxSize:      4096,
		Log:              LogConfig{Level: "info", Format: "text"},
	}
}

// loadConfig reads path (if non-empty) or reqbench.yaml from the working
// directory. Environment variables use the prefix REQBENCH, with `.`
// replaced by `_`. Example: REQBENCH_LOG_LEVEL=debug
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REQBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("requests", cfg.Requests)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("servers", cfg.Servers)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_delay", cfg.MaxDelay)
	v.SetDefault("drop_rate", cfg.DropRate)
	v.SetDefault("high_priority_rate", cfg.HighPriorityRate)
	v.SetDefault("codec", cfg.Codec)
	v.SetDefault("mailbox_size", cfg.MailboxSize)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	if path == "" {
		path = os.Getenv("REQBENCH_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reqbench")
		v.AddConfigPath(".")
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("invalid requests: %d", c.Requests)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.Servers <= 0 {
		return fmt.Errorf("invalid servers: %d", c.Servers)
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("invalid drop_rate: %v", c.DropRate)
	}
	if c.HighPriorityRate < 0 || c.HighPriorityRate > 1 {
		return fmt.Errorf("invalid high_priority_rate: %v", c.HighPriorityRate)
	}
	if _, err := codec.Lookup(c.Codec); err != nil {
		return err
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log.level: %q", l.Level)
	}
}

func (l LogConfig) logger() *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
