// Package app assembles the auction engine from configuration and runs the
// selected mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evoltmarket/auctiond/internal/config"
)

// App is the top-level application container.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	deps    *Dependencies
	cleanup func()
}

// New wires an App from the given configuration.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, log: log, deps: deps, cleanup: cleanup}, nil
}

// Run executes the configured mode until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.log.Info("starting", "mode", mode)

	switch mode {
	case "server":
		return a.runServer(ctx)
	case "sweep":
		return a.runSweep(ctx)
	case "full":
		return a.runFull(ctx)
	default:
		return fmt.Errorf("unknown mode %q", a.cfg.Mode)
	}
}

// Close releases every connection the App holds.
func (a *App) Close() {
	a.cleanup()
}
