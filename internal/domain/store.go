package domain

import (
	"context"
	"io"
	"time"
)

// TradeStore is the durable half of the transaction store. The
// in-memory index is always rebuilt from ListAll at startup, so a crash
// between a durable write and an index update is unobservable.
type TradeStore interface {
	// InsertIfAbsent persists the trade unless its TxnHash already
	// exists. It returns true when a row was written and false for a
	// duplicate; a duplicate is not an error.
	InsertIfAbsent(ctx context.Context, t Trade) (bool, error)

	// ListAll returns every stored trade in insertion order.
	ListAll(ctx context.Context) ([]Trade, error)

	// ListUnscraped returns the hashes of trades the wallet enrichment
	// job has not processed yet, oldest first.
	ListUnscraped(ctx context.Context) ([]string, error)

	// MarkScraped flips the enrichment flag for one trade.
	MarkScraped(ctx context.Context, txnHash string) error
}

// WalletStore persists wallets discovered by the enrichment job.
type WalletStore interface {
	UpsertAddress(ctx context.Context, address string, firstSeen time.Time) error

	// ListPending returns addresses whose node holdings have never been
	// read (TotalAmount still -1).
	ListPending(ctx context.Context) ([]string, error)

	UpdateNodes(ctx context.Context, w Wallet) error
}

// SignalBus publishes ingestion events for downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
