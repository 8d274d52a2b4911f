// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/casjay-forks/beans/src/logger"
	"github.com/casjay-forks/beans/src/portutil"
)

const Software = "beans"

// Defaults
const (
	DefaultPort        = "2023"
	DefaultDir         = "/tmp"
	DefaultMode        = os.FileMode(0600)
	DefaultIDLength    = 6
	DefaultStatsPeriod = 5 * time.Minute
	DefaultMetricsPath = "/metrics"
)

// ID length limits
const (
	MinIDLength = 6
	MaxIDLength = 32
)

type Metrics struct {
	// Listen address for the /metrics HTTP endpoint. Empty disables metrics.
	Listen   string
	Endpoint string
	// Optional bearer token
	Token       string
	StatsPeriod time.Duration
}

// Config is built once at startup and never modified afterwards.
type Config struct {
	Log logger.Logger

	Version string

	Port string
	Dir  string
	// Base is prepended to the paste ID in replies.
	Base     string
	Mode     os.FileMode
	IDLength int

	// Hardening; zero means unlimited.
	MaxSize     int64
	ReadTimeout time.Duration
	MaxConns    int

	// User to switch to once the port is bound. Empty keeps the current one.
	User string

	// Journal source, e.g. "sqlite:///var/lib/beans/journal.db". Empty disables it.
	Journal string

	Metrics Metrics
}

func Default() Config {
	return Config{
		Log:      logger.New("2006/01/02 15:04:05"),
		Port:     DefaultPort,
		Dir:      DefaultDir,
		Mode:     DefaultMode,
		IDLength: DefaultIDLength,
		Metrics: Metrics{
			Endpoint:    DefaultMetricsPath,
			StatsPeriod: DefaultStatsPeriod,
		},
	}
}

// Validate checks values that would otherwise only fail once a client
// connects.
func (cfg Config) Validate() error {
	if _, err := portutil.ParsePort(cfg.Port); err != nil {
		return err
	}

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return fmt.Errorf("storage directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage directory: %s is not a directory", cfg.Dir)
	}

	if cfg.Mode&^os.ModePerm != 0 {
		return fmt.Errorf("file mode %o has non-permission bits", uint32(cfg.Mode))
	}

	if cfg.IDLength < MinIDLength || cfg.IDLength > MaxIDLength {
		return fmt.Errorf("id length must be between %d and %d, got %d", MinIDLength, MaxIDLength, cfg.IDLength)
	}

	if cfg.MaxSize < 0 {
		return errors.New("max size must not be negative")
	}
	if cfg.ReadTimeout < 0 {
		return errors.New("read timeout must not be negative")
	}
	if cfg.MaxConns < 0 {
		return errors.New("max conns must not be negative")
	}

	if cfg.Metrics.Listen != "" && cfg.Metrics.StatsPeriod <= 0 {
		return errors.New("metrics stats period must be positive")
	}

	return nil
}
