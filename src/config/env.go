// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/casjay-forks/beans/src/cli"
	"github.com/casjay-forks/beans/src/validation"
)

// getEnv gets BEANS_* environment variables
var getEnv = func(name string) string {
	return os.Getenv(cli.EnvPrefix + name)
}

// ApplyEnvironmentOverrides applies the settings that have no command line
// flag. Flag-backed settings are read from the environment by the cli
// package.
func ApplyEnvironmentOverrides(cfg *Config) error {
	if val := getEnv("ID_LENGTH"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%sID_LENGTH: %w", cli.EnvPrefix, err)
		}
		cfg.IDLength = n
	}

	if val := getEnv("METRICS_ENDPOINT"); val != "" {
		cfg.Metrics.Endpoint = val
	}
	if val := getEnv("METRICS_TOKEN"); val != "" {
		cfg.Metrics.Token = val
	}
	if val := getEnv("STATS_PERIOD"); val != "" {
		d, err := cli.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%sSTATS_PERIOD: %w", cli.EnvPrefix, err)
		}
		cfg.Metrics.StatsPeriod = d
	}

	// DEBUG=true is honoured without the prefix too
	if validation.IsTruthy(os.Getenv("DEBUG")) {
		cfg.Log.SetDebugMode(true)
	}

	return nil
}
