// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casjay-forks/beans/src/cli"
)

// YAMLConfig is the optional configuration file. Empty values keep the
// defaults.
type YAMLConfig struct {
	Server struct {
		// Port number or service name (default: 2023)
		Port string `yaml:"port"`
		// Maximum simultaneous connections (0 = unlimited)
		MaxConns int `yaml:"max_conns"`
		// Read deadline for a whole paste, e.g. "30s" (empty = none)
		ReadTimeout string `yaml:"read_timeout"`
		// Maximum paste size in bytes (0 = unlimited)
		MaxSize int64 `yaml:"max_size"`
		// Account to run as after binding, "user" or "user:group"
		User string `yaml:"user"`
	} `yaml:"server"`

	Storage struct {
		// Directory pastes are written to (default: /tmp)
		Dir string `yaml:"dir"`
		// Octal permission mode (default: "0600")
		Mode string `yaml:"mode"`
		// Prefix for the reply, e.g. "https://paste.example.com/beans."
		BaseURL string `yaml:"base_url"`
		// Random suffix length (default: 6)
		IDLength int `yaml:"id_length"`
	} `yaml:"storage"`

	Journal struct {
		// sqlite:///path, postgres://..., mysql://..., redis://...
		Source string `yaml:"source"`
	} `yaml:"journal"`

	Metrics struct {
		// Listen address, e.g. ":9090" (empty = disabled)
		Listen string `yaml:"listen"`
		// Endpoint path (default: /metrics)
		Endpoint string `yaml:"endpoint"`
		// Optional bearer token
		Token string `yaml:"token"`
		// Storage scan period (default: "5m")
		StatsPeriod string `yaml:"stats_period"`
	} `yaml:"metrics"`

	Logging struct {
		// text, json, auto
		Format string `yaml:"format"`
		// info, warn, error
		Level string `yaml:"level"`
		// Optional log file, written regardless of level
		File  string `yaml:"file"`
		Debug bool   `yaml:"debug"`
	} `yaml:"logging"`
}

// LoadYAMLConfig loads configuration from YAML file
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var y YAMLConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &y, nil
}

// Apply copies every non-empty value onto cfg.
func (y *YAMLConfig) Apply(cfg *Config) error {
	if y.Server.Port != "" {
		cfg.Port = y.Server.Port
	}
	if y.Server.MaxConns != 0 {
		cfg.MaxConns = y.Server.MaxConns
	}
	if y.Server.ReadTimeout != "" {
		d, err := cli.ParseDuration(y.Server.ReadTimeout)
		if err != nil {
			return fmt.Errorf("server.read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if y.Server.MaxSize != 0 {
		cfg.MaxSize = y.Server.MaxSize
	}
	if y.Server.User != "" {
		cfg.User = y.Server.User
	}

	if y.Storage.Dir != "" {
		cfg.Dir = y.Storage.Dir
	}
	if y.Storage.Mode != "" {
		m, err := cli.ParseFileMode(y.Storage.Mode)
		if err != nil {
			return fmt.Errorf("storage.mode: %w", err)
		}
		cfg.Mode = m
	}
	if y.Storage.BaseURL != "" {
		cfg.Base = y.Storage.BaseURL
	}
	if y.Storage.IDLength != 0 {
		cfg.IDLength = y.Storage.IDLength
	}

	if y.Journal.Source != "" {
		cfg.Journal = y.Journal.Source
	}

	if y.Metrics.Listen != "" {
		cfg.Metrics.Listen = y.Metrics.Listen
	}
	if y.Metrics.Endpoint != "" {
		cfg.Metrics.Endpoint = y.Metrics.Endpoint
	}
	if y.Metrics.Token != "" {
		cfg.Metrics.Token = y.Metrics.Token
	}
	if y.Metrics.StatsPeriod != "" {
		d, err := cli.ParseDuration(y.Metrics.StatsPeriod)
		if err != nil {
			return fmt.Errorf("metrics.stats_period: %w", err)
		}
		cfg.Metrics.StatsPeriod = d
	}

	return nil
}
