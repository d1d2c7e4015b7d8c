package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/pieceengine/piece-host/backend"
	"github.com/pieceengine/piece-host/config"
	"github.com/pieceengine/piece-host/host"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file")
		envFile     = flag.String("env", ".env", "Environment file to load if present")
		driver      = flag.String("driver", "", "Core driver (reference, wasm, dynlib)")
		backends    = flag.String("backends", "", "Backends to install (comma-separated)")
		frames      = flag.Int("frames", -1, "Stop after N frames (0 runs until interrupted)")
		metrics     = flag.String("metrics", "", "Metrics listen address (e.g. :9090)")
		list        = flag.Bool("list", false, "List available backends and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *list {
		listBackends()
		return
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", *envFile, err)
		}
	}

	cfg, err := loadConfig(*configFile, *driver, *backends, *frames, *metrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the file and environment, then applies flag overrides.
func loadConfig(path, driver, backends string, frames int, metrics string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if driver != "" {
		cfg.Core.Driver = config.Driver(driver)
	}
	if backends != "" {
		cfg.Backends = nil
		for _, name := range strings.Split(backends, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Backends = append(cfg.Backends, config.BackendConfig{Name: name})
			}
		}
	}
	if frames >= 0 {
		cfg.Loop.MaxFrames = frames
	}
	if metrics != "" {
		cfg.Metrics.Listen = metrics
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := host.New(ctx, cfg, host.WithLogger(log))
	if err != nil {
		return err
	}

	runErr := h.Start(ctx)
	if runErr == nil {
		runErr = h.Run(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stopErr := h.Stop(shutdownCtx)

	stats := h.Stats()
	log.Info("done",
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("native_logs", stats.Logs.Delivered),
		zap.Uint64("callback_failures", stats.Logs.Failed))
	return errors.Join(runErr, stopErr)
}

func listBackends() {
	for _, name := range backend.Available() {
		p, err := backend.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-8s %-9s %-36s %s\n", p.Name, p.Kind, p.Symbol, p.Library)
	}
}
