// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casjay-forks/beans/src/cli"
	"github.com/casjay-forks/beans/src/config"
	"github.com/casjay-forks/beans/src/journal"
	"github.com/casjay-forks/beans/src/listener"
	"github.com/casjay-forks/beans/src/logger"
	"github.com/casjay-forks/beans/src/metrics"
	"github.com/casjay-forks/beans/src/paste"
	"github.com/casjay-forks/beans/src/portutil"
	"github.com/casjay-forks/beans/src/privilege"
	"github.com/casjay-forks/beans/src/storage"
)

// Set at build time via -ldflags
var (
	Version   = "0.1"
	CommitID  = "unknown"
	BuildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

func exitOnError(e error) {
	fmt.Fprintln(os.Stderr, "error:", e.Error())
	os.Exit(1)
}

type flags struct {
	config      *string
	port        *string
	dir         *string
	base        *string
	mode        *os.FileMode
	maxSize     *int64
	readTimeout *time.Duration
	maxConns    *int
	user        *string
	journal     *string
	metrics     *string
	logFormat   *string
	logLevel    *string
	logFile     *string
	debug       *bool
}

func addFlags(c *cli.CLI) flags {
	return flags{
		config: c.AddStringVar("config", "", "Optional YAML configuration file.", &cli.FlagOptions{Alias: "c"}),
		port:   c.AddStringVar("port", config.DefaultPort, "Port number or service name to listen on.", &cli.FlagOptions{Alias: "p"}),
		dir:    c.AddStringVar("dir", config.DefaultDir, "Directory pastes are written to.", &cli.FlagOptions{Alias: "d"}),
		base:   c.AddStringVar("base", "", "Text prepended to the paste ID in replies, e.g. https://paste.example.com/beans.", &cli.FlagOptions{Alias: "b"}),
		mode:   c.AddFileModeVar("mode", config.DefaultMode, "Octal permission mode of paste files.", &cli.FlagOptions{Alias: "m"}),

		maxSize:     c.AddInt64Var("max-size", 0, "Maximum paste size in bytes. 0 means unlimited.", nil),
		readTimeout: c.AddDurationVar("read-timeout", "0", "Time a client has to send the whole paste, e.g. 30s. 0 means no limit.", nil),
		maxConns:    c.AddIntVar("max-conns", 0, "Maximum simultaneous connections. 0 means unlimited.", nil),
		user:        c.AddStringVar("user", "", "Switch to USER[:GROUP] after binding the port.", &cli.FlagOptions{Alias: "u"}),

		journal: c.AddStringVar("journal", "", "Paste journal: sqlite:///path, postgres://..., mysql://... or redis://...", nil),
		metrics: c.AddStringVar("metrics", "", "Listen address for the Prometheus endpoint, e.g. :9090. Empty disables it.", nil),

		logFormat: c.AddStringVar("log-format", "", "Log format: text, json or auto.", nil),
		logLevel:  c.AddStringVar("log-level", "", "Minimum console log level: info, warn or error.", nil),
		logFile:   c.AddStringVar("log-file", "", "File that receives every log line.", nil),
		debug:     c.AddBoolVar("debug", "Enable debug logging.", nil),
	}
}

// loadConfig layers defaults, the YAML file, the environment and flags.
func loadConfig(c *cli.CLI, f flags) (config.Config, *os.File, error) {
	cfg := config.Default()
	cfg.Version = Version

	logFormat, logLevel, logFile := logger.FormatText, "info", ""
	debug := false

	if *f.config != "" {
		y, err := config.LoadYAMLConfig(*f.config)
		if err != nil {
			return cfg, nil, err
		}
		if err := y.Apply(&cfg); err != nil {
			return cfg, nil, fmt.Errorf("%s: %w", *f.config, err)
		}

		if y.Logging.Format != "" {
			logFormat = y.Logging.Format
		}
		if y.Logging.Level != "" {
			logLevel = y.Logging.Level
		}
		logFile = y.Logging.File
		debug = y.Logging.Debug
	}

	if err := config.ApplyEnvironmentOverrides(&cfg); err != nil {
		return cfg, nil, err
	}

	if c.IsSet("port") {
		cfg.Port = *f.port
	}
	if c.IsSet("dir") {
		cfg.Dir = *f.dir
	}
	if c.IsSet("base") {
		cfg.Base = *f.base
	}
	if c.IsSet("mode") {
		cfg.Mode = *f.mode
	}
	if c.IsSet("max-size") {
		cfg.MaxSize = *f.maxSize
	}
	if c.IsSet("read-timeout") {
		cfg.ReadTimeout = *f.readTimeout
	}
	if c.IsSet("max-conns") {
		cfg.MaxConns = *f.maxConns
	}
	if c.IsSet("user") {
		cfg.User = *f.user
	}
	if c.IsSet("journal") {
		cfg.Journal = *f.journal
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Listen = *f.metrics
	}
	if c.IsSet("log-format") {
		logFormat = *f.logFormat
	}
	if c.IsSet("log-level") {
		logLevel = *f.logLevel
	}
	if c.IsSet("log-file") {
		logFile = *f.logFile
	}
	if *f.debug {
		debug = true
	}

	cfg.Log.SetFormat(logFormat)
	cfg.Log.SetLevel(logLevel)
	if debug {
		cfg.Log.SetDebugMode(true)
	}

	var file *os.File
	if logFile != "" {
		var err error
		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return cfg, nil, fmt.Errorf("open log file: %w", err)
		}
		cfg.Log.SetFileWriter(file)
	}

	return cfg, file, nil
}

// printStartupBanner displays a formatted startup banner with server information
func printStartupBanner(cfg config.Config, addr string) {
	base := cfg.Base
	if base == "" {
		base = "(none)"
	}
	journalSource := "disabled"
	if cfg.Journal != "" {
		journalSource = journal.Redact(cfg.Journal)
	}
	metricsAddr := cfg.Metrics.Listen
	if metricsAddr == "" {
		metricsAddr = "disabled"
	} else {
		metricsAddr += cfg.Metrics.Endpoint
	}

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-58s║\n", "beans")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Version:     %-45s║\n", cfg.Version)
	fmt.Printf("║  Listen:      %-45s║\n", addr)
	fmt.Printf("║  Directory:   %-45s║\n", cfg.Dir)
	fmt.Printf("║  Mode:        %-45s║\n", cli.FormatFileMode(cfg.Mode))
	fmt.Printf("║  Base:        %-45s║\n", base)
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Journal:     %-45s║\n", journalSource)
	fmt.Printf("║  Metrics:     %-45s║\n", metricsAddr)
	fmt.Println("║  Status:      Ready                                        ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// statsLoop publishes storage directory totals every period.
func statsLoop(ctx context.Context, log logger.Logger, dir string, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		st, err := storage.Scan(dir)
		if err != nil {
			log.Error(fmt.Errorf("scan %s: %w", dir, err))
		} else {
			metrics.UpdatePasteStats(st.Count, st.Bytes)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// startMetricsServer binds the metrics address and serves it in the
// background. A bind failure is returned so startup can abort.
func startMetricsServer(cfg config.Config, mcfg metrics.Config) (*http.Server, error) {
	ln, err := net.Listen("tcp", cfg.Metrics.Listen)
	if err != nil {
		return nil, fmt.Errorf("bind metrics %s: %w", cfg.Metrics.Listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Endpoint, metrics.Handler(mcfg))

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		cfg.Log.Info("Run metrics server on " + srv.Addr + cfg.Metrics.Endpoint)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Log.Error(fmt.Errorf("metrics server: %w", err))
		}
	}()

	return srv, nil
}

func main() {
	c := cli.New(config.Software + "-" + Version)
	f := addFlags(c)
	c.Parse()

	cfg, logFile, err := loadConfig(c, f)
	if err != nil {
		exitOnError(err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if err := cfg.Validate(); err != nil {
		exitOnError(err)
	}

	var account *privilege.Account
	if cfg.User != "" {
		acc, err := privilege.Lookup(cfg.User)
		if err != nil {
			exitOnError(err)
		}
		account = &acc
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bind before anything else touches the network
	ln, err := listener.Bind(cfg.Port)
	if err != nil {
		exitOnError(err)
	}

	mcfg := metrics.Config{
		Enabled:  cfg.Metrics.Listen != "",
		Endpoint: cfg.Metrics.Endpoint,
		Token:    cfg.Metrics.Token,
	}
	metrics.Init(ctx, mcfg, Version)

	// The metrics port is bound before dropping privileges too
	var metricsSrv *http.Server
	if mcfg.Enabled {
		metricsSrv, err = startMetricsServer(cfg, mcfg)
		if err != nil {
			exitOnError(err)
		}
	}

	if account != nil {
		if err := privilege.Drop(*account); err != nil {
			exitOnError(err)
		}
		cfg.Log.Info(fmt.Sprintf("Running as %s (UID:GID %d:%d)", account.Name, account.UID, account.GID))
	}

	if mcfg.Enabled {
		go statsLoop(ctx, cfg.Log, cfg.Dir, cfg.Metrics.StatsPeriod)
	}

	j, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		exitOnError(fmt.Errorf("open journal: %w", err))
	}

	addr := portutil.DisplayAddr(ln.Addr())
	if cfg.Log.Format == logger.FormatText {
		printStartupBanner(cfg, addr)
	}
	cfg.Log.Info("Listening on " + addr)
	cfg.Log.Debug(fmt.Sprintf("Build %s (%s)", CommitID, BuildDate))

	store := storage.New(cfg.Dir, cfg.Mode, cfg.IDLength)
	srv := &listener.Server{
		Handler:  paste.NewHandler(cfg, store, j),
		Log:      cfg.Log,
		MaxConns: cfg.MaxConns,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- srv.Serve(ctx, ln)
	}()

	select {
	case err := <-serveErrors:
		if err != nil {
			exitOnError(err)
		}

	case sig := <-sigChan:
		cfg.Log.Info(fmt.Sprintf("Received signal %v, shutting down gracefully...", sig))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			cfg.Log.Error(fmt.Errorf("connections still open after %s: %w", shutdownTimeout, err))
		}

		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				cfg.Log.Error(fmt.Errorf("metrics server shutdown error: %w", err))
				metricsSrv.Close()
			}
		}
	}

	if err := j.Close(); err != nil {
		cfg.Log.Error(fmt.Errorf("close journal: %w", err))
	}

	cfg.Log.Info("Server stopped")
}
