package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"qamarket/config"
	"qamarket/core"
	"qamarket/core/events"
	"qamarket/native/market"
	"qamarket/observability/logging"
	"qamarket/rpc"
	"qamarket/services/indexer"
	"qamarket/storage"
)

const logLevelEnv = "QAMARKET_LOG_LEVEL"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup(logging.Options{
		Service:     "qamarketd",
		Environment: cfg.Environment,
		Level:       logging.ParseLevel(os.Getenv(logLevelEnv)),
		FilePath:    cfg.LogFile,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node := core.NewNode(db)
	node.SetLogger(logger)
	switch {
	case cfg.OperationCooldownSeconds < 0:
		node.SetOperationCooldown(0)
	case cfg.OperationCooldownSeconds > 0:
		node.SetOperationCooldown(cfg.OperationCooldownSeconds)
	}

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		if err := applyGenesis(node, genesisPath, logger); err != nil {
			logger.Error("Failed to apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
	}

	srv := rpc.NewServer(node, rpc.Config{
		JWTSecret:          cfg.JWTSecret(),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		ReadTimeout:        cfg.ReadTimeout.Duration,
		WriteTimeout:       cfg.WriteTimeout.Duration,
	}, logger)

	sinks := []events.Emitter{srv.EventSink()}
	if dsn := strings.TrimSpace(cfg.IndexerDSN); dsn != "" {
		idx, err := indexer.Open(dsn, logger)
		if err != nil {
			logger.Error("Failed to open event indexer", slog.Any("error", err))
			os.Exit(1)
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}
	node.SetEmitter(events.NewMultiEmitter(sinks...))

	logger.Info("Starting RPC server",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := srv.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyGenesis seeds the marketplace and the opening balances on first boot.
// A marketplace that already exists makes genesis a no-op, so restarting with
// the same file is safe.
func applyGenesis(node *core.Node, path string, logger *slog.Logger) error {
	genesis, err := config.LoadGenesis(path)
	if err != nil {
		return err
	}
	authority, err := genesis.AuthorityAddress()
	if err != nil {
		return err
	}
	treasury, err := genesis.TreasuryAddress()
	if err != nil {
		return err
	}

	_, exists, err := node.GetMarketplace(market.MarketplaceAddress(authority))
	if err != nil {
		return err
	}
	if exists {
		logger.Info("Marketplace already initialised, skipping genesis")
		return nil
	}

	if _, err := node.Initialize(authority, treasury, genesis.Marketplace.PaymentMint); err != nil {
		return err
	}
	allocations, err := genesis.DecodedAllocations()
	if err != nil {
		return err
	}
	for _, alloc := range allocations {
		if err := node.FundAccount(alloc.Address, alloc.Amount); err != nil {
			return err
		}
	}
	logger.Info("Applied genesis",
		slog.String("paymentMint", genesis.Marketplace.PaymentMint),
		slog.Int("allocations", len(allocations)))
	return nil
}
