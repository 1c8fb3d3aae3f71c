package pipeline

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// fakeFetcher replays a scripted sequence of pages or errors.
type fakeFetcher struct {
	pages   [][]domain.RawTrade
	errs    []error
	calls   int
	befores []int64
}

func (f *fakeFetcher) FetchPage(_ context.Context, before int64) ([]domain.RawTrade, error) {
	f.befores = append(f.befores, before)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.pages) {
		return nil, nil
	}
	return f.pages[i], nil
}

// memLedger is an Inserter that dedups by hash in memory.
type memLedger struct {
	seen      map[string]bool
	inserted  []domain.Trade
	insertErr error
}

func newMemLedger() *memLedger {
	return &memLedger{seen: make(map[string]bool)}
}

func (m *memLedger) Insert(_ context.Context, t domain.Trade) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if m.seen[t.TxnHash] {
		return false, nil
	}
	m.seen[t.TxnHash] = true
	m.inserted = append(m.inserted, t)
	return true, nil
}

func raw(hash string, ts int64) domain.RawTrade {
	return domain.RawTrade{
		TxnHash:        hash,
		BlockTimestamp: ts,
		Type:           "sell",
		PriceUSD:       "1.0",
		VolumeUSD:      "1.0",
		Amount0:        "1.0",
		Amount1:        "1.0",
	}
}

// transportErr is a retryable fake transport failure.
type transportErr struct{ retryable bool }

func (e *transportErr) Error() string     { return "connection reset" }
func (e *transportErr) IsRetryable() bool { return e.retryable }

func newScraper(f PageFetcher, l Inserter) *Scraper {
	return New(f, l, nil, Config{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
}

func TestRunExhaustedOnEmptyPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 300), raw("0x2", 200)},
		{},
	}}
	ledger := newMemLedger()

	report, err := newScraper(fetcher, ledger).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Outcome != OutcomeExhausted {
		t.Errorf("outcome = %s, want exhausted", report.Outcome)
	}
	if len(report.Inserted) != 2 {
		t.Errorf("inserted %d trades, want 2", len(report.Inserted))
	}
	// The full page advanced the watermark to its last record.
	if report.Watermark != 200 {
		t.Errorf("watermark = %d, want 200", report.Watermark)
	}
	// The second fetch used the advanced watermark.
	if fetcher.befores[1] != 200 {
		t.Errorf("second fetch cursor = %d, want 200", fetcher.befores[1])
	}
}

func TestRunCaughtUpOnDuplicate(t *testing.T) {
	// Page 3 repeats the last record of page 2: the run must stop
	// before accepting anything from page 3.
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 500), raw("0x2", 400)},
		{raw("0x3", 300), raw("0x4", 200)},
		{raw("0x4", 200), raw("0x5", 100)},
	}}
	ledger := newMemLedger()

	report, err := newScraper(fetcher, ledger).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Outcome != OutcomeCaughtUp {
		t.Errorf("outcome = %s, want caught_up", report.Outcome)
	}
	if len(ledger.inserted) != 4 {
		t.Errorf("inserted %d trades, want 4", len(ledger.inserted))
	}
	for _, tr := range ledger.inserted {
		if tr.TxnHash == "0x5" {
			t.Error("record after the duplicate was accepted")
		}
	}
	// The partial page must not advance the watermark.
	if report.Watermark != 200 {
		t.Errorf("watermark = %d, want 200 (end of page 2)", report.Watermark)
	}
}

func TestRunDuplicateMidPageStopsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 500)},
		{raw("0x2", 400), raw("0x1", 500), raw("0x3", 300)},
	}}
	ledger := newMemLedger()

	report, err := newScraper(fetcher, ledger).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Outcome != OutcomeCaughtUp {
		t.Errorf("outcome = %s, want caught_up", report.Outcome)
	}
	// 0x2 (before the duplicate) is in; 0x3 (after it) is not.
	if !ledger.seen["0x2"] || ledger.seen["0x3"] {
		t.Errorf("seen = %v, want 0x2 kept and 0x3 rejected", ledger.seen)
	}
}

func TestRunWatermarkNeverAdvancesWithoutProgress(t *testing.T) {
	same := []domain.RawTrade{raw("0x1", 100)}
	repeat := []domain.RawTrade{raw("0x2", 100)}
	// Second page ends on the same timestamp the first one set; with
	// all-new hashes this would otherwise loop forever.
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{same, repeat, repeat, repeat}}
	ledger := newMemLedger()

	report, err := newScraper(fetcher, ledger).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Outcome != OutcomeExhausted {
		t.Errorf("outcome = %s, want exhausted", report.Outcome)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch called %d times, want 2 (no infinite loop)", fetcher.calls)
	}
}

func TestRunWatermarkMonotonicAcrossPages(t *testing.T) {
	pages := make([][]domain.RawTrade, 0, 4)
	ts := int64(1000)
	for p := 0; p < 3; p++ {
		var page []domain.RawTrade
		for i := 0; i < 5; i++ {
			ts -= 10
			page = append(page, raw("0x"+strconv.FormatInt(ts, 16), ts))
		}
		pages = append(pages, page)
	}
	pages = append(pages, nil) // exhaust

	fetcher := &fakeFetcher{pages: pages}
	s := newScraper(fetcher, newMemLedger())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Each fetch cursor must be the previous page's last timestamp,
	// strictly walking back in time.
	for i := 1; i < len(fetcher.befores); i++ {
		if fetcher.befores[i] >= fetcher.befores[i-1] {
			t.Errorf("cursor moved forward: fetch %d at %d, fetch %d at %d",
				i-1, fetcher.befores[i-1], i, fetcher.befores[i])
		}
	}
	if s.Watermark() != 850 {
		t.Errorf("final watermark = %d, want 850", s.Watermark())
	}
}

func TestRunRetriesTransportErrors(t *testing.T) {
	fetcher := &fakeFetcher{
		errs:  []error{&transportErr{retryable: true}, &transportErr{retryable: true}},
		pages: [][]domain.RawTrade{nil, nil, {}},
	}
	report, err := newScraper(fetcher, newMemLedger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed after retryable errors: %v", err)
	}
	if report.Outcome != OutcomeExhausted {
		t.Errorf("outcome = %s, want exhausted", report.Outcome)
	}
	if fetcher.calls != 3 {
		t.Errorf("fetch called %d times, want 3", fetcher.calls)
	}
}

func TestRunFailsWhenRetriesExhausted(t *testing.T) {
	fetcher := &fakeFetcher{errs: []error{
		&transportErr{retryable: true},
		&transportErr{retryable: true},
		&transportErr{retryable: true},
	}}
	if _, err := newScraper(fetcher, newMemLedger()).Run(context.Background()); err == nil {
		t.Fatal("Run should fail once retries are exhausted")
	}
	if fetcher.calls != 3 {
		t.Errorf("fetch called %d times, want 3 (1 try + 2 retries)", fetcher.calls)
	}
}

func TestRunNonRetryableErrorIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{errs: []error{&transportErr{retryable: false}}}
	if _, err := newScraper(fetcher, newMemLedger()).Run(context.Background()); err == nil {
		t.Fatal("Run should surface a non-retryable error immediately")
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch called %d times, want 1", fetcher.calls)
	}
}

func TestRunMalformedRecordIsFatal(t *testing.T) {
	bad := raw("0xbad", 100)
	bad.PriceUSD = "not-a-number"
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 200), bad, raw("0x2", 50)},
	}}
	ledger := newMemLedger()
	s := newScraper(fetcher, ledger)
	before := s.Watermark()

	_, err := s.Run(context.Background())
	if !errors.Is(err, domain.ErrMalformedPage) {
		t.Fatalf("error = %v, want ErrMalformedPage", err)
	}
	// No partial ingestion: nothing from the offending page — before or
	// after the bad record — and the watermark stays put.
	if len(ledger.inserted) != 0 {
		t.Errorf("offending page partially ingested: %d records stored", len(ledger.inserted))
	}
	if s.Watermark() != before {
		t.Errorf("watermark moved on a malformed page: %d -> %d", before, s.Watermark())
	}
}

func TestRunRecoversAfterMalformedPage(t *testing.T) {
	bad := raw("0xbad", 100)
	bad.PriceUSD = "not-a-number"
	ledger := newMemLedger()

	// First run: the page aborts the run.
	first := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 200), bad, raw("0x2", 50)},
	}}
	s := newScraper(first, ledger)
	if _, err := s.Run(context.Background()); !errors.Is(err, domain.ErrMalformedPage) {
		t.Fatalf("error = %v, want ErrMalformedPage", err)
	}

	// Second run refetches from the unchanged watermark and the feed
	// now serves the page intact. Every record must land: a stored
	// prefix from the first run would read as a duplicate here and
	// silently end the run as caught-up.
	second := &fakeFetcher{pages: [][]domain.RawTrade{
		{raw("0x1", 200), raw("0xbad", 100), raw("0x2", 50)},
	}}
	s.fetcher = second

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Outcome != OutcomeExhausted {
		t.Errorf("outcome = %s, want exhausted", report.Outcome)
	}
	if len(ledger.inserted) != 3 {
		t.Errorf("stored %d records after recovery, want 3", len(ledger.inserted))
	}
}

func TestRunDurableWriteFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{{raw("0x1", 100)}}}
	ledger := newMemLedger()
	ledger.insertErr = errors.New("disk full")

	if _, err := newScraper(fetcher, ledger).Run(context.Background()); err == nil {
		t.Fatal("Run should surface a durable-write failure")
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{pages: [][]domain.RawTrade{{raw("0x1", 100)}}}
	s := newScraper(fetcher, newMemLedger())
	before := s.Watermark()

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if s.Watermark() != before {
		t.Error("cancellation corrupted the watermark")
	}
}

func TestWatermarkInitializedToNow(t *testing.T) {
	lo := time.Now().UnixMilli()
	s := newScraper(&fakeFetcher{}, newMemLedger())
	hi := time.Now().UnixMilli()

	if wm := s.Watermark(); wm < lo || wm > hi {
		t.Errorf("initial watermark %d outside [%d, %d]", wm, lo, hi)
	}
}
