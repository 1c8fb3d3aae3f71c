// Package ledger keeps the in-memory view of the transaction store: a
// dedup set keyed by txn hash and per-side collections in insertion
// order, mirrored over the durable store. The index is never trusted
// across restarts; Load rebuilds it from storage, which is what makes
// a crash between a durable write and an index append unobservable.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// Ledger is the deduplicating, categorized transaction store. One
// writer (the ingestion loop) inserts; readers may snapshot
// concurrently.
type Ledger struct {
	store  domain.TradeStore
	logger *slog.Logger

	mu     sync.RWMutex
	byHash map[string]struct{}
	bySide map[domain.Side][]domain.Trade
	all    []domain.Trade
}

// New creates an empty Ledger over the given durable store. Call Load
// before first use.
func New(store domain.TradeStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger.With(slog.String("component", "ledger")),
		byHash: make(map[string]struct{}),
		bySide: make(map[domain.Side][]domain.Trade),
	}
}

// Load rebuilds the hash set and per-side collections from durable
// storage. An empty store is fine (first run).
func (l *Ledger) Load(ctx context.Context) error {
	trades, err := l.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.byHash = make(map[string]struct{}, len(trades))
	l.bySide = make(map[domain.Side][]domain.Trade)
	l.all = make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		l.byHash[t.TxnHash] = struct{}{}
		l.bySide[t.Side] = append(l.bySide[t.Side], t)
		l.all = append(l.all, t)
	}

	l.logger.Info("ledger loaded",
		slog.Int("trades", len(trades)),
		slog.Int("sells", len(l.bySide[domain.SideSell])),
		slog.Int("buys", len(l.bySide[domain.SideBuy])),
	)
	return nil
}

// Insert stores the trade. It returns false without touching durable
// storage when the txn hash is already known; a duplicate is a defined
// outcome, not an error. The durable write happens before the index is
// updated, so a failed write leaves the index untouched.
func (l *Ledger) Insert(ctx context.Context, t domain.Trade) (bool, error) {
	if t.TxnHash == "" {
		return false, fmt.Errorf("ledger: insert: empty txn hash")
	}

	l.mu.RLock()
	_, dup := l.byHash[t.TxnHash]
	l.mu.RUnlock()
	if dup {
		return false, nil
	}

	// Single-writer contract: nobody else can insert this hash between
	// the check above and the write below.
	inserted, err := l.store.InsertIfAbsent(ctx, t)
	if err != nil {
		return false, fmt.Errorf("ledger: insert %s: %w", t.TxnHash, err)
	}
	if !inserted {
		// Durable store knew the hash but the index did not; repair the
		// index and report the duplicate.
		l.logger.Warn("durable store ahead of index", slog.String("txn_hash", t.TxnHash))
	}

	l.mu.Lock()
	l.byHash[t.TxnHash] = struct{}{}
	if inserted {
		l.bySide[t.Side] = append(l.bySide[t.Side], t)
		l.all = append(l.all, t)
	}
	l.mu.Unlock()

	return inserted, nil
}

// AllBySide returns a copy of the per-side collections in insertion
// order.
func (l *Ledger) AllBySide() map[domain.Side][]domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[domain.Side][]domain.Trade, len(l.bySide))
	for side, trades := range l.bySide {
		cp := make([]domain.Trade, len(trades))
		copy(cp, trades)
		out[side] = cp
	}
	return out
}

// Snapshot returns a copy of every stored trade in insertion order.
func (l *Ledger) Snapshot() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := make([]domain.Trade, len(l.all))
	copy(cp, l.all)
	return cp
}

// Len reports the number of stored trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.all)
}
