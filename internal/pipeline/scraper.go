// Package pipeline drives ingestion: the scraper walks the feed's
// timestamp cursor page by page, integrates each page into the ledger,
// and stops when it reaches data it has already seen.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// PageFetcher retrieves one page of raw trades strictly older than the
// given unix millisecond timestamp.
type PageFetcher interface {
	FetchPage(ctx context.Context, before int64) ([]domain.RawTrade, error)
}

// Inserter is the store surface the scraper writes through.
type Inserter interface {
	Insert(ctx context.Context, t domain.Trade) (bool, error)
}

// retryable is implemented by transport errors that may be retried.
type retryable interface {
	IsRetryable() bool
}

// Outcome reports why a scrape run stopped.
type Outcome int

const (
	// OutcomeCaughtUp means a page contained an already-known trade:
	// pagination reached previously ingested data.
	OutcomeCaughtUp Outcome = iota

	// OutcomeExhausted means the feed returned an empty page, or a page
	// that made no watermark progress.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCaughtUp:
		return "caught_up"
	case OutcomeExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Config holds scraper tuning knobs.
type Config struct {
	MaxRetries   int           // transport retries per fetch (default: 3)
	RetryBackoff time.Duration // initial backoff, doubled per attempt (default: 1s)
	Channel      string        // signal bus channel for run events (default: "trades")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryBackoff: time.Second,
		Channel:      "trades",
	}
}

// RunReport summarizes one completed scrape run.
type RunReport struct {
	RunID     string
	Outcome   Outcome
	Pages     int
	Inserted  []domain.Trade
	Watermark int64
}

// Scraper owns the pagination watermark and repeatedly pulls pages
// until the feed is exhausted or catches up to known data. The
// watermark starts at wall-clock now and only ever moves after a page
// has been fully integrated.
type Scraper struct {
	fetcher PageFetcher
	ledger  Inserter
	bus     domain.SignalBus // optional
	cfg     Config
	logger  *slog.Logger

	watermark int64
}

// New creates a Scraper with its watermark initialized to the current
// wall-clock time.
func New(fetcher PageFetcher, ledger Inserter, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Scraper {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultConfig().Channel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher:   fetcher,
		ledger:    ledger,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scraper")),
		watermark: time.Now().UnixMilli(),
	}
}

// Watermark returns the current pagination cursor.
func (s *Scraper) Watermark() int64 {
	return s.watermark
}

// Run executes one full scrape: fetch and integrate pages until the
// feed reports caught-up or exhausted, the context is cancelled, or a
// fatal error occurs. The watermark survives across runs, so a later
// Run resumes where this one stopped.
func (s *Scraper) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		Watermark: s.watermark,
	}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	logger.Info("scrape run starting", slog.Int64("watermark", s.watermark))

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		raw, err := s.fetchWithRetry(ctx, logger)
		if err != nil {
			return report, err
		}
		report.Pages++

		if len(raw) == 0 {
			report.Outcome = OutcomeExhausted
			break
		}

		caughtUp, inserted, err := s.integratePage(ctx, raw)
		report.Inserted = append(report.Inserted, inserted...)
		if err != nil {
			return report, err
		}

		if len(inserted) > 0 {
			s.publishIngested(ctx, logger, report.RunID, inserted)
		}

		if caughtUp {
			report.Outcome = OutcomeCaughtUp
			break
		}

		// The whole page was new: the last record defines the next
		// cursor position. A page that moves the cursor nowhere would
		// loop forever, so treat it as the end of the feed.
		next := raw[len(raw)-1].BlockTimestamp
		if next == s.watermark {
			logger.Warn("watermark made no progress, treating feed as exhausted",
				slog.Int64("watermark", s.watermark))
			report.Outcome = OutcomeExhausted
			break
		}
		s.watermark = next
		report.Watermark = next

		if report.Pages%100 == 0 {
			logger.Info("scrape progress",
				slog.Int("pages", report.Pages),
				slog.Int("inserted", len(report.Inserted)),
				slog.Int64("watermark", s.watermark),
			)
		}
	}

	report.Watermark = s.watermark
	logger.Info("scrape run finished",
		slog.String("outcome", report.Outcome.String()),
		slog.Int("pages", report.Pages),
		slog.Int("inserted", len(report.Inserted)),
		slog.Int64("watermark", s.watermark),
	)
	return report, nil
}

// RunLoop repeats Run on a fixed interval until the context is
// cancelled. Fatal run errors are logged and the next tick retries from
// the current watermark.
func (s *Scraper) RunLoop(ctx context.Context, interval time.Duration, onRun func(context.Context, *RunReport)) error {
	run := func() {
		report, err := s.Run(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("scrape run failed", slog.String("error", err.Error()))
			}
			return
		}
		if onRun != nil {
			onRun(ctx, report)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scraper loop stopped")
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

// integratePage normalizes the whole page before touching the store,
// then inserts the records in feed order. The first duplicate stops
// integration: pagination has reached known data. A record that fails
// to normalize is fatal for the run, and because the watermark never
// moved, the next run refetches the page from the top — so nothing
// from the offending page may be stored, or the refetch would stop at
// the stored prefix as a duplicate and drop everything behind it.
func (s *Scraper) integratePage(ctx context.Context, raw []domain.RawTrade) (caughtUp bool, inserted []domain.Trade, err error) {
	page := make([]domain.Trade, 0, len(raw))
	for _, r := range raw {
		t, err := r.Normalize()
		if err != nil {
			return false, nil, fmt.Errorf("integrate page: %w", err)
		}
		page = append(page, t)
	}

	for _, t := range page {
		ok, err := s.ledger.Insert(ctx, t)
		if err != nil {
			return false, inserted, fmt.Errorf("integrate page: %w", err)
		}
		if !ok {
			return true, inserted, nil
		}
		inserted = append(inserted, t)
	}
	return false, inserted, nil
}

// fetchWithRetry fetches one page, retrying transport errors with
// exponential backoff and jitter. Malformed pages are never retried.
func (s *Scraper) fetchWithRetry(ctx context.Context, logger *slog.Logger) ([]domain.RawTrade, error) {
	var lastErr error
	backoff := s.cfg.RetryBackoff

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// Jitter: backoff * (0.5 to 1.5).
			wait := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			logger.Debug("retrying fetch",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}

		raw, err := s.fetcher.FetchPage(ctx, s.watermark)
		if err == nil {
			return raw, nil
		}
		if errors.Is(err, domain.ErrMalformedPage) || ctx.Err() != nil {
			return nil, err
		}
		var r retryable
		if errors.As(err, &r) && !r.IsRetryable() {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", s.cfg.MaxRetries, lastErr)
}

// publishIngested emits a best-effort trades_ingested event; a bus
// failure never affects the run.
func (s *Scraper) publishIngested(ctx context.Context, logger *slog.Logger, runID string, inserted []domain.Trade) {
	if s.bus == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"event":     "trades_ingested",
		"run_id":    runID,
		"count":     len(inserted),
		"watermark": s.watermark,
	})
	if err := s.bus.Publish(ctx, s.cfg.Channel, payload); err != nil {
		logger.Warn("publish trades_ingested failed", slog.String("error", err.Error()))
	}
}
