// Package enrich runs the wallet enrichment batch jobs. It is a
// consumer of the core store, not part of it: the enrichment flag on a
// stored trade is the only record field it ever mutates.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
	"github.com/theimperious1/VaporAnalyzer/internal/platform/avalanche"
)

// Chain is the on-chain surface the enricher needs.
type Chain interface {
	SenderOf(ctx context.Context, txnHash string) (string, error)
	NodesOf(ctx context.Context, address string) ([]avalanche.Node, error)
}

// Enricher discovers wallet addresses behind stored trades and reads
// their node holdings from the storage contract.
type Enricher struct {
	trades      domain.TradeStore
	wallets     domain.WalletStore
	chain       Chain
	concurrency int
	logger      *slog.Logger
}

// New creates an Enricher. Concurrency bounds the number of in-flight
// RPC calls; values below 1 run sequentially.
func New(trades domain.TradeStore, wallets domain.WalletStore, chain Chain, concurrency int, logger *slog.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		trades:      trades,
		wallets:     wallets,
		chain:       chain,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "enricher")),
	}
}

// FetchWallets resolves the sender address of every trade the job has
// not visited, upserts each as a wallet, and marks the trade scraped.
// It returns the number of trades processed.
func (e *Enricher) FetchWallets(ctx context.Context) (int, error) {
	hashes, err := e.trades.ListUnscraped(ctx)
	if err != nil {
		return 0, fmt.Errorf("enrich: list unscraped: %w", err)
	}
	if len(hashes) == 0 {
		e.logger.Info("no unscraped trades")
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, hash := range hashes {
		g.Go(func() error {
			sender, err := e.chain.SenderOf(ctx, hash)
			if err != nil {
				return fmt.Errorf("enrich: trade %s: %w", hash, err)
			}
			if err := e.wallets.UpsertAddress(ctx, sender, time.Now().UTC()); err != nil {
				return err
			}
			// Flag last: a crash before this point re-runs the trade.
			if err := e.trades.MarkScraped(ctx, hash); err != nil {
				return err
			}
			e.logger.Debug("wallet recorded",
				slog.String("txn_hash", hash),
				slog.String("address", sender),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	e.logger.Info("wallets fetched from trade data", slog.Int("trades", len(hashes)))
	return len(hashes), nil
}

// UpdateNodes reads node holdings for every wallet that has never been
// enriched and stores the totals. It returns the number of wallets
// updated.
func (e *Enricher) UpdateNodes(ctx context.Context) (int, error) {
	addrs, err := e.wallets.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("enrich: list pending wallets: %w", err)
	}
	if len(addrs) == 0 {
		e.logger.Info("no pending wallets")
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, addr := range addrs {
		g.Go(func() error {
			nodes, err := e.chain.NodesOf(ctx, addr)
			if err != nil {
				return fmt.Errorf("enrich: wallet %s: %w", addr, err)
			}

			w := summarizeNodes(addr, nodes)
			if err := e.wallets.UpdateNodes(ctx, w); err != nil {
				return err
			}
			e.logger.Info("wallet nodes updated",
				slog.Int("n", i+1),
				slog.String("address", addr),
				slog.Float64("total_amount", w.TotalAmount),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	e.logger.Info("node update complete", slog.Int("wallets", len(addrs)))
	return len(addrs), nil
}

// summarizeNodes folds the contract's node list into a Wallet. Deleted
// nodes are skipped; the bookkeeping timestamps carry the last live
// node's values, matching the contract's per-account layout.
func summarizeNodes(addr string, nodes []avalanche.Node) domain.Wallet {
	w := domain.Wallet{
		Address:          addr,
		TotalAmount:      -1,
		CreationTime:     -1,
		LastClaimTime:    -1,
		LastCompoundTime: -1,
	}

	for _, n := range nodes {
		if n.Deleted {
			continue
		}
		amount := weiToToken(n.Amount)
		w.Nodes = append(w.Nodes, n.Name)
		w.NodeAmounts = append(w.NodeAmounts, amount)
		w.TotalAmount += amount
		w.CreationTime = toInt64(n.CreationTime)
		w.LastClaimTime = toInt64(n.LastClaimTime)
		w.LastCompoundTime = toInt64(n.LastCompoundTime)
	}
	return w
}

// weiToToken converts an 18-decimal integer amount to a float token
// count.
func weiToToken(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

func toInt64(v *big.Int) int64 {
	if v == nil {
		return -1
	}
	return v.Int64()
}
