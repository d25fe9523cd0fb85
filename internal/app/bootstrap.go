package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/infra"
	"github.com/Lumaria/Bot-Extended/internal/infra/extended"
	"github.com/Lumaria/Bot-Extended/internal/infra/storage"
	"github.com/Lumaria/Bot-Extended/internal/service"
	"github.com/Lumaria/Bot-Extended/internal/strategy"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Client     *extended.Client
	Supervisor *service.StreamSupervisor
	Metadata   *service.MetadataCache
	Account    *service.AccountService
	Strategy   strategy.Strategy
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires the whole object graph: config, logger, database,
// exchange client, quote supervision and the order strategy.
func (b *Bootstrap) Initialize(configPath string, signer extended.OrderSigner) error {
	slog.Info("🚀 Bootstrapping Bot Extended...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Exchange client and quote plumbing
	b.Client = extended.NewClient(cfg, signer)
	snapshots := service.NewSnapshotStore()
	b.Supervisor = service.NewStreamSupervisor(extended.NewDialer(cfg), snapshots)
	b.Supervisor.SetRetryDelays(
		time.Duration(cfg.Stream.ReconnectDelaySec)*time.Second,
		time.Duration(cfg.Stream.ReadRetryDelaySec)*time.Second,
	)
	b.Metadata = service.NewMetadataCache(b.Client, time.Duration(cfg.Cache.MetadataTTLSec)*time.Second)
	b.Account = service.NewAccountService(b.Client, b.Supervisor, b.Metadata)
	b.Strategy = strategy.NewBestPriceStrategy(b.Metadata, b.Supervisor, b.Client)
	slog.Info("✅ Exchange client ready")

	return nil
}

// RestoreWatchlist restarts streams for every market that was being
// watched when the previous session ended.
func (b *Bootstrap) RestoreWatchlist(ctx context.Context) {
	markets, err := b.Storage.Watchlist()
	if err != nil {
		slog.Warn("failed to load watchlist", slog.Any("error", err))
		return
	}
	if len(markets) == 0 {
		return
	}

	b.Supervisor.StartStreams(ctx, markets)
	slog.Info("🔄 Watchlist restored", slog.Any("markets", markets))
}

// Shutdown stops every stream and waits for the listeners to exit.
func (b *Bootstrap) Shutdown() {
	if b.Supervisor != nil {
		b.Supervisor.CloseAll()
	}
	slog.Info("👋 Shutdown complete")
}
