package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `block_number, block_timestamp, txn_hash, log_index,
	side, price_usd, volume_usd, amount_vpnd, amount_avax, scraped`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.BlockNumber, &t.BlockTimestamp, &t.TxnHash, &t.LogIndex,
			&t.Side, &t.PriceUSD, &t.VolumeUSD, &t.AmountVPND, &t.AmountAVAX,
			&t.Scraped,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertIfAbsent writes the trade unless its txn_hash is already stored.
// It reports false for a duplicate (ON CONFLICT DO NOTHING affected no
// rows); any other failure is a durable-write error.
func (s *TradeStore) InsertIfAbsent(ctx context.Context, t domain.Trade) (bool, error) {
	const query = `
		INSERT INTO transactions (
			block_number, block_timestamp, txn_hash, log_index,
			side, price_usd, volume_usd, amount_vpnd, amount_avax, scraped
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		) ON CONFLICT (txn_hash) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		t.BlockNumber, t.BlockTimestamp, t.TxnHash, t.LogIndex,
		t.Side, t.PriceUSD, t.VolumeUSD, t.AmountVPND, t.AmountAVAX, t.Scraped,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert trade %s: %w", t.TxnHash, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAll returns every stored trade in insertion order. The in-memory
// index is rebuilt from this at startup.
func (s *TradeStore) ListAll(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM transactions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListUnscraped returns the hashes of trades the enrichment job has not
// visited, oldest first.
func (s *TradeStore) ListUnscraped(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT txn_hash FROM transactions WHERE NOT scraped ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unscraped trades: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("postgres: scan unscraped trade: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// MarkScraped flips the enrichment flag for one trade.
func (s *TradeStore) MarkScraped(ctx context.Context, txnHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET scraped = TRUE WHERE txn_hash = $1`, txnHash)
	if err != nil {
		return fmt.Errorf("postgres: mark trade %s scraped: %w", txnHash, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark trade %s scraped: %w", txnHash, domain.ErrNotFound)
	}
	return nil
}
