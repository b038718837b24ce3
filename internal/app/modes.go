package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evoltmarket/auctiond/internal/server"
	"github.com/evoltmarket/auctiond/internal/server/handler"
	"github.com/evoltmarket/auctiond/internal/server/ws"
)

// shutdownGrace bounds how long in-flight requests may drain on shutdown.
const shutdownGrace = 10 * time.Second

// runServer serves the HTTP API and the WebSocket event stream.
func (a *App) runServer(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.deps.Bus, a.log)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	srv := server.New(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			AdminAPIKey:     a.cfg.Server.AdminAPIKey,
			RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		},
		server.Handlers{
			Health:  handler.NewHealth(a.deps.Health),
			Auction: handler.NewAuction(a.deps.AuctionSvc),
			Bid:     handler.NewBid(a.deps.BidSvc),
			Admin:   handler.NewAdmin(a.deps.AuctionSvc, a.deps.Audit),
			Hub:     hub,
		},
		a.deps.Limiter,
		a.log,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runSweep runs only the lifecycle sweeper (and the archiver when enabled).
func (a *App) runSweep(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.deps.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.deps.Archiver != nil {
		g.Go(func() error {
			if err := a.deps.Archiver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// runFull runs the API server and the sweeper in one process.
func (a *App) runFull(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		g.Go(func() error { return a.runServer(ctx) })
	}
	g.Go(func() error { return a.runSweep(ctx) })

	return g.Wait()
}
