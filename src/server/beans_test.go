// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/casjay-forks/beans/src/cli"
	"github.com/casjay-forks/beans/src/config"
	"github.com/casjay-forks/beans/src/logger"
	"github.com/casjay-forks/beans/src/metrics"
)

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	flagDir := t.TempDir()

	yml := filepath.Join(dir, "beans.yml")
	err := os.WriteFile(yml, []byte(`
server:
  port: "9999"
  read_timeout: 10s
storage:
  dir: `+dir+`
  mode: "0644"
logging:
  format: json
  level: warn
`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	c := cli.New("beans-test")
	c.Out = &bytes.Buffer{}
	c.Getenv = func(k string) string {
		return map[string]string{"BEANS_PORT": "7000"}[k]
	}
	f := addFlags(c)

	if err := c.ParseArgs([]string{"-config", yml, "-d", flagDir, "-log-level", "error"}); err != nil {
		t.Fatal(err)
	}

	cfg, file, err := loadConfig(c, f)
	if err != nil {
		t.Fatal(err)
	}
	if file != nil {
		t.Error("no log file was configured")
	}

	// env beats YAML
	if cfg.Port != "7000" {
		t.Error("expected 7000 but got", cfg.Port)
	}
	// flag beats YAML
	if cfg.Dir != flagDir {
		t.Error("expected", flagDir, "but got", cfg.Dir)
	}
	// YAML beats defaults
	if cfg.Mode != 0644 || cfg.ReadTimeout != 10*time.Second {
		t.Error("YAML values not applied:", cfg.Mode, cfg.ReadTimeout)
	}
	if cfg.Log.Format != logger.FormatJSON || cfg.Log.Level != logger.LogLevelError {
		t.Error("unexpected logging settings:", cfg.Log.Format, cfg.Log.Level)
	}
	if cfg.Version != Version {
		t.Error("expected", Version, "but got", cfg.Version)
	}

	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadConfigLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beans.log")

	c := cli.New("beans-test")
	c.Out = &bytes.Buffer{}
	c.Getenv = func(string) string { return "" }
	f := addFlags(c)

	if err := c.ParseArgs([]string{"-log-file", path}); err != nil {
		t.Fatal(err)
	}

	cfg, file, err := loadConfig(c, f)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	cfg.Log.SetWriter(&bytes.Buffer{})
	cfg.Log.Info("hello file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("hello file")) {
		t.Error("expected log line in file but got", string(data))
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := cli.New("beans-test")
	c.Out = &bytes.Buffer{}
	c.Getenv = func(string) string { return "" }
	f := addFlags(c)

	if err := c.ParseArgs([]string{"-config", filepath.Join(t.TempDir(), "nope.yml")}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(c, f); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestStartMetricsServer(t *testing.T) {
	cfg := config.Default()
	cfg.Log.SetWriter(io.Discard)
	cfg.Metrics.Listen = "127.0.0.1:0"
	mcfg := metrics.Config{Endpoint: cfg.Metrics.Endpoint, Token: "secret"}

	srv, err := startMetricsServer(cfg, mcfg)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	url := "http://" + srv.Addr + cfg.Metrics.Endpoint

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Error("expected", http.StatusUnauthorized, "but got", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Error("expected", http.StatusOK, "but got", resp.StatusCode)
	}
}

func TestStartMetricsServerPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := config.Default()
	cfg.Log.SetWriter(io.Discard)
	cfg.Metrics.Listen = busy.Addr().String()

	srv, err := startMetricsServer(cfg, metrics.Config{Endpoint: cfg.Metrics.Endpoint})
	if err == nil {
		srv.Close()
		t.Fatal("expected bind error for a port in use")
	}
}
