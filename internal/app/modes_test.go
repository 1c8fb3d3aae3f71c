package app

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/theimperious1/VaporAnalyzer/internal/config"
	"github.com/theimperious1/VaporAnalyzer/internal/domain"
	"github.com/theimperious1/VaporAnalyzer/internal/pipeline"
)

type noopFetcher struct{}

func (noopFetcher) FetchPage(context.Context, int64) ([]domain.RawTrade, error) {
	return nil, nil
}

type noopInserter struct{}

func (noopInserter) Insert(context.Context, domain.Trade) (bool, error) {
	return true, nil
}

// Shutdown signals cancel the context mid-mode; the error that bubbles
// out of the mode is wrapped, and main distinguishes clean shutdown
// from failure with errors.Is.
func TestScrapeModeCancellationIsContextCanceled(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, slog.Default())

	deps := &Dependencies{
		Scraper: pipeline.New(noopFetcher{}, noopInserter{}, nil, pipeline.Config{}, nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.ScrapeMode(ctx, deps)
	if err == nil {
		t.Fatal("expected an error from a cancelled run")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false for %v", err)
	}
}
