package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/theimperious1/VaporAnalyzer/internal/cli"
	"github.com/theimperious1/VaporAnalyzer/internal/pipeline"
)

// ScrapeMode runs a single ingestion pass and exits.
func (a *App) ScrapeMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Scraper.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: scrape: %w", err)
	}

	a.logger.Info("scrape finished",
		slog.String("run_id", report.RunID),
		slog.String("outcome", report.Outcome.String()),
		slog.Int("pages", report.Pages),
		slog.Int("inserted", len(report.Inserted)),
		slog.Int64("watermark", report.Watermark),
	)

	a.export(ctx, deps, report)
	return nil
}

// WatchMode runs the ingestion loop on the configured interval until the
// context is cancelled, exporting each run that inserted trades.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Scraper.WatchInterval.Duration
	a.logger.Info("watching feed", slog.Duration("interval", interval))

	return deps.Scraper.RunLoop(ctx, interval, func(ctx context.Context, report *pipeline.RunReport) {
		a.export(ctx, deps, report)
	})
}

// EnrichMode resolves wallet addresses for stored trades, then refreshes
// node holdings for every wallet still pending.
func (a *App) EnrichMode(ctx context.Context, deps *Dependencies) error {
	trades, err := deps.Enricher.FetchWallets(ctx)
	if err != nil {
		return fmt.Errorf("app: enrich: %w", err)
	}
	wallets, err := deps.Enricher.UpdateNodes(ctx)
	if err != nil {
		return fmt.Errorf("app: enrich: %w", err)
	}

	a.logger.Info("enrichment finished",
		slog.Int("trades", trades),
		slog.Int("wallets", wallets),
	)
	return nil
}

// MenuMode drives the interactive analysis menu on stdin/stdout.
func (a *App) MenuMode(ctx context.Context, deps *Dependencies) error {
	menu := cli.New(cli.Deps{
		Scraper:  deps.Scraper,
		Enricher: deps.Enricher,
		Engine:   deps.Engine,
		Logger:   a.logger,
	}, os.Stdin, os.Stdout)
	return menu.Run(ctx)
}

// export uploads a run's trades when an exporter is configured. Export
// failures are logged, not fatal: the trades are already durable.
func (a *App) export(ctx context.Context, deps *Dependencies, report *pipeline.RunReport) {
	if deps.Exporter == nil || report == nil {
		return
	}
	if err := deps.Exporter.Export(ctx, report); err != nil {
		a.logger.Error("run export failed",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()),
		)
	}
}
