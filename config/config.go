// Package config loads server settings from an optional YAML file with
// environment variable overrides, falling back to built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds every tunable of the server process.
type Config struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`

	UploadsDir  string `mapstructure:"uploads_dir"`
	SessionsDir string `mapstructure:"sessions_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`

	MinPieces   int     `mapstructure:"min_pieces"`
	MaxPieces   int     `mapstructure:"max_pieces"`
	AspectRatio float64 `mapstructure:"aspect_ratio"`

	// SnapshotRate is the fraction of piece releases that trigger a
	// durable snapshot; the autosave ticker covers the rest.
	SnapshotRate     float64       `mapstructure:"snapshot_rate"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the per-upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads config.yaml from the working directory or ./config when
// present. Every key can be overridden with a PUZZLE_ prefixed
// environment variable (PUZZLE_PORT, PUZZLE_UPLOADS_DIR, ...).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PUZZLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("static_dir", "./public")
	v.SetDefault("uploads_dir", "./uploads")
	v.SetDefault("sessions_dir", "./sessions")
	v.SetDefault("max_upload_mb", 15)
	v.SetDefault("min_pieces", 25)
	v.SetDefault("max_pieces", 250)
	v.SetDefault("aspect_ratio", 4.0/3.0)
	v.SetDefault("snapshot_rate", 0.1)
	v.SetDefault("autosave_interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debug().Msg("no config file found, using defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
