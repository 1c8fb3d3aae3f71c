package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/theimperious1/VaporAnalyzer/internal/blob/s3"
	"github.com/theimperious1/VaporAnalyzer/internal/cache/redis"
	"github.com/theimperious1/VaporAnalyzer/internal/config"
	"github.com/theimperious1/VaporAnalyzer/internal/domain"
	"github.com/theimperious1/VaporAnalyzer/internal/enrich"
	"github.com/theimperious1/VaporAnalyzer/internal/ledger"
	"github.com/theimperious1/VaporAnalyzer/internal/pipeline"
	"github.com/theimperious1/VaporAnalyzer/internal/platform/avalanche"
	"github.com/theimperious1/VaporAnalyzer/internal/platform/dexscreener"
	"github.com/theimperious1/VaporAnalyzer/internal/query"
	"github.com/theimperious1/VaporAnalyzer/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	TradeStore  domain.TradeStore
	WalletStore domain.WalletStore
	Ledger      *ledger.Ledger
	Scraper     *pipeline.Scraper
	Exporter    *pipeline.Exporter // nil unless S3 is enabled
	Engine      *query.Engine
	Enricher    *enrich.Enricher // nil unless the mode touches the chain
}

// needsChain returns true for modes that call the Avalanche RPC.
func needsChain(mode string) bool {
	switch mode {
	case "enrich", "menu":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.WalletStore = postgres.NewWalletStore(pool)

	// --- Ledger: the in-memory index is rebuilt from the store on every
	// start, so queries never see a partial view. ---
	deps.Ledger = ledger.New(deps.TradeStore, logger)
	if err := deps.Ledger.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger load: %w", err)
	}
	deps.Engine = query.NewEngine(deps.Ledger)

	// --- Redis signal bus (optional) ---
	var bus domain.SignalBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		bus = redis.NewSignalBus(redisClient)
	}

	// --- Feed client and scraper ---
	feed := dexscreener.NewClient(
		cfg.Feed.BaseURL,
		cfg.Feed.Chain,
		cfg.Feed.PairAddress,
		dexscreener.WithTimeout(cfg.Feed.Timeout.Duration),
	)
	deps.Scraper = pipeline.New(feed, deps.Ledger, bus, pipeline.Config{
		MaxRetries:   cfg.Scraper.MaxRetries,
		RetryBackoff: cfg.Scraper.RetryBackoff.Duration,
		Channel:      cfg.Redis.Channel,
	}, logger)

	// --- S3 run exports (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Exporter = pipeline.NewExporter(s3blob.NewWriter(s3Client), logger)
	}

	// --- Avalanche RPC and enricher ---
	if needsChain(mode) {
		chain, err := avalanche.Dial(ctx, cfg.Enrich.RPCURL, cfg.Enrich.StorageContract)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: avalanche: %w", err)
		}
		closers = append(closers, chain.Close)
		deps.Enricher = enrich.New(deps.TradeStore, deps.WalletStore, chain, cfg.Enrich.Concurrency, logger)
	}

	return deps, cleanup, nil
}
