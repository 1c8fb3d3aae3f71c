package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// fakeTradeStore is an in-memory domain.TradeStore with error injection.
type fakeTradeStore struct {
	trades    []domain.Trade
	known     map[string]bool
	insertErr error
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{known: make(map[string]bool)}
}

func (f *fakeTradeStore) InsertIfAbsent(_ context.Context, t domain.Trade) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.known[t.TxnHash] {
		return false, nil
	}
	f.known[t.TxnHash] = true
	f.trades = append(f.trades, t)
	return true, nil
}

func (f *fakeTradeStore) ListAll(context.Context) ([]domain.Trade, error) {
	return append([]domain.Trade(nil), f.trades...), nil
}

func (f *fakeTradeStore) ListUnscraped(context.Context) ([]string, error) { return nil, nil }
func (f *fakeTradeStore) MarkScraped(context.Context, string) error       { return nil }

func trade(hash string, side domain.Side, price float64) domain.Trade {
	return domain.Trade{TxnHash: hash, Side: side, PriceUSD: price}
}

func TestInsertDeduplicates(t *testing.T) {
	ctx := context.Background()
	l := New(newFakeTradeStore(), nil)
	if err := l.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	inserted, err := l.Insert(ctx, trade("tx1", domain.SideSell, 10.0))
	if err != nil || !inserted {
		t.Fatalf("first Insert = (%v, %v), want (true, nil)", inserted, err)
	}

	inserted, err = l.Insert(ctx, trade("tx2", domain.SideBuy, 12.0))
	if err != nil || !inserted {
		t.Fatalf("second Insert = (%v, %v), want (true, nil)", inserted, err)
	}

	// Same hash again, even with different payload, is a no-op.
	inserted, err = l.Insert(ctx, trade("tx1", domain.SideSell, 99.0))
	if err != nil {
		t.Fatalf("duplicate Insert returned error: %v", err)
	}
	if inserted {
		t.Error("duplicate Insert reported true")
	}

	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}

	sells := l.AllBySide()[domain.SideSell]
	if len(sells) != 1 || sells[0].PriceUSD != 10.0 {
		t.Errorf("sell side = %+v, want single original tx1", sells)
	}
}

func TestInsertEmptyHash(t *testing.T) {
	l := New(newFakeTradeStore(), nil)
	if _, err := l.Insert(context.Background(), domain.Trade{Side: domain.SideBuy}); err == nil {
		t.Error("Insert with empty hash should fail")
	}
}

func TestDurableWriteFailureLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	store := newFakeTradeStore()
	l := New(store, nil)

	store.insertErr = errors.New("disk full")
	if _, err := l.Insert(ctx, trade("tx1", domain.SideSell, 1)); err == nil {
		t.Fatal("Insert should propagate durable-write failure")
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after failed write, want 0", l.Len())
	}

	// The same trade succeeds once the store recovers.
	store.insertErr = nil
	inserted, err := l.Insert(ctx, trade("tx1", domain.SideSell, 1))
	if err != nil || !inserted {
		t.Errorf("Insert after recovery = (%v, %v), want (true, nil)", inserted, err)
	}
}

func TestLoadRebuildsFromDurableStorage(t *testing.T) {
	ctx := context.Background()
	store := newFakeTradeStore()

	first := New(store, nil)
	if err := first.Load(ctx); err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	for _, tr := range []domain.Trade{
		trade("tx1", domain.SideSell, 10),
		trade("tx2", domain.SideBuy, 12),
		trade("tx3", domain.SideSell, 11),
	} {
		if _, err := first.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert %s failed: %v", tr.TxnHash, err)
		}
	}

	// Simulate a restart: a fresh ledger over the same durable store.
	second := New(store, nil)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load after restart failed: %v", err)
	}

	if second.Len() != 3 {
		t.Fatalf("Len after reload = %d, want 3", second.Len())
	}

	want := first.AllBySide()
	got := second.AllBySide()
	for _, side := range domain.Sides() {
		if len(got[side]) != len(want[side]) {
			t.Fatalf("side %s: reload has %d trades, want %d", side, len(got[side]), len(want[side]))
		}
		for i := range got[side] {
			if got[side][i].TxnHash != want[side][i].TxnHash {
				t.Errorf("side %s[%d]: hash %s, want %s", side, i, got[side][i].TxnHash, want[side][i].TxnHash)
			}
		}
	}

	// Reloaded dedup set still rejects known hashes.
	inserted, err := second.Insert(ctx, trade("tx2", domain.SideBuy, 50))
	if err != nil || inserted {
		t.Errorf("Insert of known hash after reload = (%v, %v), want (false, nil)", inserted, err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	l := New(newFakeTradeStore(), nil)
	if _, err := l.Insert(ctx, trade("tx1", domain.SideSell, 10)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	snap := l.Snapshot()
	snap[0].PriceUSD = 999

	if got := l.Snapshot()[0].PriceUSD; got != 10 {
		t.Errorf("mutating a snapshot leaked into the ledger: price = %v", got)
	}
}
