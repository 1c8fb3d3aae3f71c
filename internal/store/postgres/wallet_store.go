package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore creates a WalletStore backed by the given connection pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// UpsertAddress records a wallet address discovered from a trade. An
// address seen before keeps its existing enrichment data.
func (s *WalletStore) UpsertAddress(ctx context.Context, address string, firstSeen time.Time) error {
	const query = `
		INSERT INTO wallets (address, first_seen)
		VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, address, firstSeen); err != nil {
		return fmt.Errorf("postgres: upsert wallet %s: %w", address, err)
	}
	return nil
}

// ListPending returns addresses that have never been enriched.
func (s *WalletStore) ListPending(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address FROM wallets WHERE total_amount = -1 ORDER BY first_seen ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending wallets: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("postgres: scan pending wallet: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// UpdateNodes stores the node holdings read from the storage contract.
func (s *WalletStore) UpdateNodes(ctx context.Context, w domain.Wallet) error {
	names, err := json.Marshal(w.Nodes)
	if err != nil {
		return fmt.Errorf("postgres: marshal node names for %s: %w", w.Address, err)
	}
	amounts, err := json.Marshal(w.NodeAmounts)
	if err != nil {
		return fmt.Errorf("postgres: marshal node amounts for %s: %w", w.Address, err)
	}

	const query = `
		UPDATE wallets
		SET nodes = $2, node_amounts = $3, total_amount = $4,
			creation_time = $5, last_claim_time = $6, last_compound_time = $7
		WHERE address = $1`

	tag, err := s.pool.Exec(ctx, query,
		w.Address, names, amounts, w.TotalAmount,
		w.CreationTime, w.LastClaimTime, w.LastCompoundTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: update wallet %s nodes: %w", w.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update wallet %s nodes: %w", w.Address, domain.ErrNotFound)
	}
	return nil
}
