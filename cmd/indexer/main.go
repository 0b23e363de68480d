package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/chains/core"
	"github.com/openaudio/discovery-indexer/internal/chains/poa"
	"github.com/openaudio/discovery-indexer/internal/chains/solana"
	"github.com/openaudio/discovery-indexer/internal/config"
	"github.com/openaudio/discovery-indexer/internal/consensus"
	"github.com/openaudio/discovery-indexer/internal/lock"
	"github.com/openaudio/discovery-indexer/internal/logger"
	"github.com/openaudio/discovery-indexer/internal/ratelimit"
	"github.com/openaudio/discovery-indexer/internal/replayer"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/worker"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Service:   "indexer",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting indexer")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	dataStore := store.NewPGStore(db)

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Build the chain route table. Each configured era owns a
	// contiguous adjusted-height range; the core chain takes the rest.
	router, err := buildRouter(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build chain router", zap.Error(err))
	}

	// Peer consensus check for suspicious skips
	var verifier replayer.SkipVerifier
	if len(cfg.Consensus.Peers) > 0 {
		client := consensus.NewClient(cfg.Consensus.Peers, cfg.Consensus.Quorum, cfg.Consensus.Timeout)
		verifier = consensus.NewVerifier(client, dataStore, logger.Default())
	} else {
		logger.Warn("No consensus peers configured, skips stay unconfirmed")
	}

	orchestrator, err := replayer.New(replayer.Params{
		Store:    dataStore,
		Stream:   cfg.Worker.Stream,
		Verifier: verifier,
		Logger:   logger.Default(),
	})
	if err != nil {
		logger.Fatal("Failed to create replay engine", zap.Error(err))
	}

	limiter := ratelimit.New(rdb, cfg.Worker.RPCRateLimit, logger.Default())

	streamWorker, err := worker.New(worker.Params{
		Stream:       cfg.Worker.Stream,
		Store:        dataStore,
		Router:       router,
		Orchestrator: orchestrator,
		StartHeight:  cfg.Worker.StartHeight,
		PollInterval: cfg.Worker.PollInterval,
		Limiter:      limiter,
		Logger:       logger.Default(),
	})
	if err != nil {
		logger.Fatal("Failed to create worker", zap.Error(err))
	}

	lease := lock.NewLease(rdb, "indexer:maintenance", cfg.Worker.LockTTL)
	maintenance := worker.NewMaintenance(dataStore, rdb, lease, cfg.Worker.MaintenanceInterval, logger.Default())

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Worker.MetricsAddr, mux); err != nil {
			logger.Error(err, zap.String("component", "metrics"))
		}
	}()
	go func() {
		if err := streamWorker.Run(ctx); err != nil {
			logger.Error(err, zap.String("component", "worker"))
		}
	}()
	go func() {
		if err := maintenance.Run(ctx); err != nil {
			logger.Error(err, zap.String("component", "maintenance"))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	// Give the current block a moment to finish committing
	time.Sleep(time.Second)
	logger.Info("Indexer stopped")
}

func buildRouter(ctx context.Context, cfg *config.IndexerConfig) (*chains.Router, error) {
	var routes []chains.Route
	next := uint64(1)

	if cfg.POA.RPCURL != "" {
		if cfg.POA.FinalHeight == 0 {
			return nil, fmt.Errorf("poa.final_height is required when poa is configured")
		}
		client, err := ethclient.DialContext(ctx, cfg.POA.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial poa rpc: %w", err)
		}
		adapter, err := poa.New(client, common.HexToAddress(cfg.POA.ContractAddress), chains.Cutover{Offset: cfg.POA.CutoverOffset})
		if err != nil {
			return nil, err
		}
		routes = append(routes, chains.Route{Adapter: adapter, From: next, To: cfg.POA.FinalHeight})
		next = cfg.POA.FinalHeight + 1
	}

	if cfg.Solana.RPCURL != "" {
		if cfg.Solana.FinalHeight == 0 {
			return nil, fmt.Errorf("solana.final_height is required when solana is configured")
		}
		adapter := solana.New(cfg.Solana.RPCURL, chains.Cutover{Offset: cfg.Solana.CutoverOffset}, cfg.Solana.Timeout)
		routes = append(routes, chains.Route{Adapter: adapter, From: next, To: cfg.Solana.FinalHeight})
		next = cfg.Solana.FinalHeight + 1
	}

	if cfg.Core.Endpoint == "" {
		return nil, fmt.Errorf("core.endpoint is required")
	}
	adapter := core.New(cfg.Core.Endpoint, chains.Cutover{Offset: cfg.Core.CutoverOffset}, cfg.Core.Timeout)
	routes = append(routes, chains.Route{Adapter: adapter, From: next})

	return chains.NewRouter(routes...)
}
