// Package config holds the runtime settings for tugboat: which reaper
// image to launch, how aggressively to retry its connection, and the
// default polling parameters for readiness waits. Settings come from an
// optional YAML file with TUGBOAT_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Reaper settings.
	ReaperImage     string `yaml:"reaper_image"`
	ReaperPort      int    `yaml:"reaper_port"`
	ReaperDisabled  bool   `yaml:"reaper_disabled"`
	ReaperMemLimit  string `yaml:"reaper_mem_limit"` // e.g. "128m", parsed with go-units
	ConnectAttempts int    `yaml:"connect_attempts"`
	ConnectDelayMs  int    `yaml:"connect_delay_ms"`

	// Wait engine defaults. Individual strategies may override both.
	StartupTimeoutSeconds int `yaml:"startup_timeout_seconds"`
	PollIntervalMs        int `yaml:"poll_interval_ms"`

	// Daemon-side settings (read by cmd/reaperd).
	ReapGraceMs             int `yaml:"reap_grace_ms"`
	FirstConnTimeoutSeconds int `yaml:"first_conn_timeout_seconds"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		ReaperImage:             "tugboat/reaperd:latest",
		ReaperPort:              8080,
		ReaperMemLimit:          "128m",
		ConnectAttempts:         5,
		ConnectDelayMs:          200,
		StartupTimeoutSeconds:   60,
		PollIntervalMs:          100,
		ReapGraceMs:             1000,
		FirstConnTimeoutSeconds: 60,
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if _, err := cfg.ReaperMemBytes(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReaperMemBytes parses the configured reaper memory limit into bytes.
func (c *Config) ReaperMemBytes() (int64, error) {
	n, err := units.RAMInBytes(c.ReaperMemLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid reaper_mem_limit %q: %w", c.ReaperMemLimit, err)
	}
	return n, nil
}

// ConnectDelay returns the backoff step between reaper dial attempts.
func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.ConnectDelayMs) * time.Millisecond
}

// StartupTimeout returns the default wait-strategy deadline.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSeconds) * time.Second
}

// PollInterval returns the default wait-strategy poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ReapGrace returns how long the daemon waits after a connection drops
// before pruning, giving a reconnecting client a chance to re-arm.
func (c *Config) ReapGrace() time.Duration {
	return time.Duration(c.ReapGraceMs) * time.Millisecond
}

// FirstConnTimeout returns how long the daemon waits for its first client
// before exiting, so an orphaned reaper container does not linger forever.
func (c *Config) FirstConnTimeout() time.Duration {
	return time.Duration(c.FirstConnTimeoutSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUGBOAT_REAPER_IMAGE"); v != "" {
		cfg.ReaperImage = v
	}
	if v := os.Getenv("TUGBOAT_REAPER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReaperPort = n
		}
	}
	if v := os.Getenv("TUGBOAT_REAPER_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReaperDisabled = b
		}
	}
	if v := os.Getenv("TUGBOAT_REAPER_MEM_LIMIT"); v != "" {
		cfg.ReaperMemLimit = v
	}
	if v := os.Getenv("TUGBOAT_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConnectAttempts = n
		}
	}
	if v := os.Getenv("TUGBOAT_CONNECT_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConnectDelayMs = n
		}
	}
	if v := os.Getenv("TUGBOAT_STARTUP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StartupTimeoutSeconds = n
		}
	}
	if v := os.Getenv("TUGBOAT_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollIntervalMs = n
		}
	}
	if v := os.Getenv("TUGBOAT_REAP_GRACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReapGraceMs = n
		}
	}
	if v := os.Getenv("TUGBOAT_FIRST_CONN_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FirstConnTimeoutSeconds = n
		}
	}
}
