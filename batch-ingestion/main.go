package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/containerman17/op-batches/batch-ingestion/api"
	"github.com/containerman17/op-batches/batch-ingestion/consts"
	"github.com/containerman17/op-batches/batch-ingestion/logging"
	"github.com/containerman17/op-batches/batch-ingestion/metrics"
	"github.com/containerman17/op-batches/batch-ingestion/rpc"
	"github.com/containerman17/op-batches/batch-ingestion/runner"
	"github.com/containerman17/op-batches/batch-ingestion/storage"
	"github.com/containerman17/op-batches/batching"
)

func main() {
	_ = godotenv.Load() // Load .env if present

	logger, err := logging.New(getEnvOrDefault("LOG_LEVEL", "info"), os.Getenv("LOG_FILE"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Required: RPC URL and chain name
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		logger.Fatal("RPC_URL environment variable is required")
	}
	chain := os.Getenv("CHAIN")
	if chain == "" {
		logger.Fatal("CHAIN environment variable is required")
	}

	// Validate every configured chain before touching the network
	batches, err := loadBatchPolicy(os.Getenv("POLICY_FILE"))
	if err != nil {
		logger.Fatal("invalid batch policy", zap.Error(err))
	}
	if !batches.Has(chain) {
		logger.Fatal("chain has no batch policy", zap.String("chain", chain), zap.Strings("known", batches.Chains()))
	}
	logger.Info("batch policy validated", zap.Int("chains", len(batches.Chains())))

	// Optional: other settings with defaults
	pebblePath := getEnvOrDefault("PEBBLE_PATH", "./data/pebble")
	serverAddr := getEnvOrDefault("SERVER_ADDR", consts.ServerListenAddr)
	metricsAddr := getEnvOrDefault("METRICS_ADDR", consts.MetricsListenAddr)
	workers := getEnvIntOrDefault("WORKERS", consts.RunnerDefaultWorkers)
	follow := getEnvBoolOrDefault("FOLLOW", false)

	requested, err := requestedRange()
	if err != nil {
		logger.Fatal("invalid block range", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := rpc.NewClient(rpc.Config{
		URL:        rpcURL,
		Chain:      chain,
		MaxRetries: consts.FetcherMaxRetries,
		Logger:     logger,
	})
	evmChainID, err := client.ChainID(ctx)
	if err != nil {
		logger.Fatal("failed to fetch chainID from RPC", zap.Error(err))
	}
	logger.Info("connected", zap.String("chain", chain), zap.Uint64("evm_chain_id", evmChainID))

	store, err := storage.NewPebbleStorage(pebblePath, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()
	logger.Info("storage opened", zap.String("path", pebblePath))

	metrics.InitChain(chain)
	metrics.StartServer(metricsAddr, logger)

	server := api.NewServer(batches, store, chain, logger)
	if _, err := server.Start(serverAddr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	defer server.Stop()

	executor, err := runner.NewExecutor(runner.ExecutorConfig{
		Chain:   chain,
		Batches: batches,
		Source:  client,
		Storage: store,
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create executor", zap.Error(err))
	}

	logger.Info("ingestion started",
		zap.String("chain", chain),
		zap.Stringer("range", requested),
		zap.Int("workers", workers),
		zap.Bool("follow", follow),
		zap.String("run_id", executor.RunID()),
	)
	if err := executor.Run(ctx, requested, follow, consts.FollowPollInterval); err != nil && ctx.Err() == nil {
		logger.Error("ingestion failed", zap.Error(err))
		server.Stop()
		store.Close()
		os.Exit(1)
	}
	logger.Info("ingestion stopped")
}

// loadBatchPolicy merges the policy file, if any, over the built-in policy and
// validates the result.
func loadBatchPolicy(path string) (*batching.Store, error) {
	cfg := batching.DefaultConfiguration()
	if path != "" {
		overrides, err := batching.LoadConfigurationFile(path)
		if err != nil {
			return nil, err
		}
		cfg = batching.MergeConfiguration(cfg, overrides)
	}
	return batching.NewStore(cfg)
}

// requestedRange reads RANGE ("min:max" or "min:+count"), falling back to
// START_BLOCK and END_BLOCK. Without an end the range is open.
func requestedRange() (batching.BlockRange, error) {
	if s := os.Getenv("RANGE"); s != "" {
		return batching.ParseBlockRange(s)
	}
	start := getEnvUint64OrDefault("START_BLOCK", 0)
	end := getEnvUint64OrDefault("END_BLOCK", math.MaxUint64)
	return batching.NewBlockRange(start, end)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint64OrDefault(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
