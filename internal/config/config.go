package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"lectern/internal/httputil"
	"lectern/internal/playback"
	"lectern/internal/scheduler"
)

type Config struct {
	ListenAddr    string `koanf:"listen_addr"`
	DBPath        string `koanf:"db_path"`
	MigrationsDir string `koanf:"migrations_dir"` // empty uses the schema compiled into the binary
	CORSOrigin    string `koanf:"cors_origin"`

	// Subjects are refreshed from the backend at startup and then every
	// RefreshInterval.
	Subjects        []string      `koanf:"subjects"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	Backend  BackendConfig  `koanf:"backend"`
	Playback PlaybackConfig `koanf:"playback"`
}

type BackendConfig struct {
	URL       string        `koanf:"url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second
	Burst     int           `koanf:"burst"`
}

type PlaybackConfig struct {
	MountTimeout time.Duration `koanf:"mount_timeout"`
	StartTimeout time.Duration `koanf:"start_timeout"`
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":7940",
		DBPath:     "./data/lectern.db",

		RefreshInterval: scheduler.DefaultInterval,
		Backend: BackendConfig{
			Timeout:   httputil.BackendTimeout,
			RateLimit: 20,
			Burst:     10,
		},
		Playback: PlaybackConfig{
			MountTimeout: playback.DefaultMountTimeout,
			StartTimeout: playback.DefaultStartTimeout,
		},
	}
}

// Load reads path (skipped when empty or missing), then applies LECTERN_*
// environment overrides on top.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Backend.URL = strings.TrimSuffix(cfg.Backend.URL, "/")
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = envOr("LECTERN_LISTEN_ADDR", c.ListenAddr)
	c.DBPath = envOr("LECTERN_DB_PATH", c.DBPath)
	c.MigrationsDir = envOr("LECTERN_MIGRATIONS_DIR", c.MigrationsDir)
	c.CORSOrigin = envOr("LECTERN_CORS_ORIGIN", c.CORSOrigin)
	c.Backend.URL = envOr("LECTERN_BACKEND_URL", c.Backend.URL)
	c.Backend.Token = envOr("LECTERN_BACKEND_TOKEN", c.Backend.Token)
	if v := os.Getenv("LECTERN_SUBJECTS"); v != "" {
		c.Subjects = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Subjects = append(c.Subjects, s)
			}
		}
	}
	if v := os.Getenv("LECTERN_MOUNT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LECTERN_MOUNT_TIMEOUT: %w", err)
		}
		c.Playback.MountTimeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend url is required")
	}
	if err := httputil.ValidateBaseURL(c.Backend.URL); err != nil {
		return fmt.Errorf("backend url: %w", err)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if c.Backend.RateLimit <= 0 || c.Backend.Burst <= 0 {
		return errors.New("backend rate limit and burst must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.Playback.MountTimeout <= 0 {
		return errors.New("mount timeout must be positive")
	}
	if c.Playback.StartTimeout <= 0 {
		return errors.New("start timeout must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
