// Command starnav plans jump routes through a star catalogue.
//
// Usage:
//
//	starnav route -from Sol -to "Alp Cen" -jump 5
//	starnav minrange -from Sol -to Vega
//	starnav import -file data/hyg_v41.csv
//	starnav export -out data/stars.json
//	starnav stats
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/udisondev/starnav/internal/config"
)

const DefaultConfigPath = "config/starnav.yaml"

var errUsage = errors.New("usage")

type command struct {
	name string
	desc string
	run  func(ctx context.Context, cfg config.Config, args []string) error
}

var commands []command

func registerCommand(name, desc string, fn func(ctx context.Context, cfg config.Config, args []string) error) {
	commands = append(commands, command{name: name, desc: desc, run: fn})
}

func init() {
	registerCommand("route", "Plan a route between two stars", runRoute)
	registerCommand("minrange", "Find the smallest jump range that connects two stars", runMinRange)
	registerCommand("import", "Load a stars.json or HYG CSV file into PostgreSQL", runImport)
	registerCommand("export", "Write the configured catalogue as stars.json", runExport)
	registerCommand("stats", "Build the spatial index and report its shape", runStats)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
			os.Exit(2)
		}
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	// Load config FIRST to determine log level
	cfg, err := config.Load(config.Path(DefaultConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, cfg, args[1:])
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
	return errUsage
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: starnav <command> [flags]")
	fmt.Fprintln(os.Stderr)

	sorted := make([]command, len(commands))
	copy(sorted, commands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.desc)
	}
	fmt.Fprintf(os.Stderr, "\nConfig is read from %s (override with %s).\n", DefaultConfigPath, config.EnvPath)
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
