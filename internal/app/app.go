// Package app provides the top-level application lifecycle for the facility
// ledger daemon. It wires together the ledger storage, marker registry
// client, writer lock, archiver, services, and HTTP server, and runs them
// until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strandfi/facilityd/internal/config"
	"github.com/strandfi/facilityd/internal/domain"
	"github.com/strandfi/facilityd/internal/server"
	"github.com/strandfi/facilityd/internal/server/handler"
	"github.com/strandfi/facilityd/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server and background loops, and blocks until the context is cancelled or
// a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("storage", a.cfg.Storage),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	facility := domain.Facility{
		Account:         a.cfg.Facility.Account,
		Warehouse:       a.cfg.Facility.Warehouse,
		Originator:      a.cfg.Facility.Originator,
		EscrowAccount:   a.cfg.Facility.EscrowAccount,
		SettlementDenom: a.cfg.Facility.SettlementDenom,
		AdvanceRate:     a.cfg.Facility.AdvanceRate,
	}

	pledgeSvc := service.NewPledgeService(deps.Ledger, deps.Oracle, facility, a.logger)
	paydownSvc := service.NewPaydownService(deps.Ledger, deps.Oracle, facility, a.logger)
	if deps.Locks != nil {
		pledgeSvc = pledgeSvc.WithLocks(deps.Locks)
		paydownSvc = paydownSvc.WithLocks(deps.Locks)
	}
	facilitySvc := service.NewFacilityService(deps.Ledger, facility, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Pledges:  handler.NewPledgeHandler(pledgeSvc, a.logger),
			Paydowns: handler.NewPaydownHandler(paydownSvc, a.logger),
			Facility: handler.NewFacilityHandler(facilitySvc, a.logger),
		},
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	// Shut the server down once the context is cancelled.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// archiveLoop periodically uploads terminal pledge and paydown records older
// than the retention window to object storage. Archive failures are logged
// and retried on the next tick rather than taking the daemon down.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

			pledges, err := deps.Archiver.ArchivePledges(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive pledges failed", slog.String("error", err.Error()))
			}
			paydowns, err := deps.Archiver.ArchivePaydowns(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive paydowns failed", slog.String("error", err.Error()))
			}

			if pledges > 0 || paydowns > 0 {
				a.logger.InfoContext(ctx, "archived terminal records",
					slog.Int64("pledges", pledges),
					slog.Int64("paydowns", paydowns),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
