// Package config loads and validates the matching core's startup
// configuration: listen addresses, protocol limits, seed instruments
// and the log level, before any other component starts.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the fully validated, ready-to-use application configuration.
type Config struct {
	// ListenNetwork is "tcp" or "unix", per spec.md §6.
	ListenNetwork string `mapstructure:"listen_network" validate:"required,oneof=tcp unix"`
	// ListenAddress is a host:port for tcp, or a socket path for unix.
	ListenAddress string `mapstructure:"listen_address" validate:"required"`

	// AdminListenAddress serves the operator HTTP surface (internal/adminapi).
	AdminListenAddress string `mapstructure:"admin_listen_address" validate:"required"`

	// MaxFrameBody is validated here against the wire protocol's hard
	// kMaxFrame limit but is not passed to the session layer; inbound
	// bodies are bounded by wire.MaxFrameBody.
	MaxFrameBody int `mapstructure:"max_frame_body" validate:"gt=0,lte=65536"`

	// SessionPoolSize bounds concurrently served connections.
	SessionPoolSize int `mapstructure:"session_pool_size" validate:"gt=0"`
	// FrameRatePerSecond and FrameBurst bound per-connection pacing.
	FrameRatePerSecond float64 `mapstructure:"frame_rate_per_second" validate:"gt=0"`
	FrameBurst         int     `mapstructure:"frame_burst" validate:"gt=0"`

	// SeedInstruments are registered at startup, in order; their
	// allocated instrument ids are 1..len(SeedInstruments), matching
	// Engine.AddNewInstrument's allocation order.
	SeedInstruments []string `mapstructure:"seed_instruments"`

	// LogLevel is parsed by internal/telemetry.NewLogger.
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		ListenNetwork:      "tcp",
		ListenAddress:      ":7700",
		AdminListenAddress: ":7701",
		MaxFrameBody:       65536,
		SessionPoolSize:    4096,
		FrameRatePerSecond: 50000,
		FrameBurst:         1000,
		LogLevel:           "info",
	}
}

// Load reads configuration from path (if non-empty) and environment
// variables prefixed MATCHCORE_, layered over Default, then validates
// the result. A validation failure is a startup error, never a runtime
// one, per SPEC_FULL.md's ambient-stack contract.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_network", cfg.ListenNetwork)
	v.SetDefault("listen_address", cfg.ListenAddress)
	v.SetDefault("admin_listen_address", cfg.AdminListenAddress)
	v.SetDefault("max_frame_body", cfg.MaxFrameBody)
	v.SetDefault("session_pool_size", cfg.SessionPoolSize)
	v.SetDefault("frame_rate_per_second", cfg.FrameRatePerSecond)
	v.SetDefault("frame_burst", cfg.FrameBurst)
	v.SetDefault("log_level", cfg.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}
