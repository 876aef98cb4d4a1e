// Command indexer runs the Block Sync Driver, Token Metadata Task, Balance
// Refresh Task, and Change Publisher for every chain named in the
// configured YAML file.
//
// Grounded on zk/debug_tools/datastream-host's signal.Notify shutdown
// idiom, generalized to cancel a shared context.Context rather than just
// unblocking main, and on urfave/cli/v2 for flag parsing the way the
// teacher's own zk/apollo layers YAML config under a cli.Context.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/traitmeta/evmindexer/balancetask"
	"github.com/traitmeta/evmindexer/blockcache"
	"github.com/traitmeta/evmindexer/config"
	"github.com/traitmeta/evmindexer/logging"
	"github.com/traitmeta/evmindexer/publisher"
	"github.com/traitmeta/evmindexer/rpcgateway"
	"github.com/traitmeta/evmindexer/storage"
	"github.com/traitmeta/evmindexer/syncdriver"
	"github.com/traitmeta/evmindexer/tokentask"
)

func main() {
	app := &cli.App{
		Name:  "indexer",
		Usage: "sync EVM chains into a relational store",
		Flags: []cli.Flag{config.ConfigFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Options{
		ConsoleVerbosity: cfg.Logging.ConsoleVerbosity,
		DirPath:          cfg.Logging.DirPath,
		DirPrefix:        cfg.Logging.DirPrefix,
		DirVerbosity:     cfg.Logging.DirVerbosity,
		ConsoleJSON:      cfg.Logging.ConsoleJSON,
		DirJSON:          cfg.Logging.DirJSON,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(runCtx, storage.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Ping(runCtx); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	var pub *publisher.Publisher
	if len(cfg.Kafka.Brokers) > 0 && len(cfg.Kafka.Topics) > 0 {
		pub = publisher.New(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		defer pub.Close()
	}

	for _, chainCfg := range cfg.Chains {
		gateway := rpcgateway.New(chainCfg.Name, chainCfg.RPCEndpoints, logger)
		cache := blockcache.New(chainCfg.Name, rdb)

		lastHeight, err := store.LatestConsensusBlockNumber(runCtx)
		if err != nil {
			return err
		}

		driver := syncdriver.New(chainCfg.Name, gateway, store, cache, pub,
			chainCfg.PollInterval, chainCfg.ConfirmationLag, chainCfg.BatchSize, lastHeight, logger)
		go driver.Run(runCtx)

		metadataTask := tokentask.New(store, gateway, chainCfg.PollInterval*10, chainCfg.BatchSize, logger)
		go metadataTask.Run(runCtx)

		balanceTask := balancetask.New(store, gateway, chainCfg.PollInterval*5, chainCfg.BatchSize, logger)
		go balanceTask.Run(runCtx)

		logger.Info("chain driver started", "chain", chainCfg.Name, "from_height", lastHeight+1)
	}

	waitForShutdown(logger)
	cancel()
	return nil
}

// waitForShutdown blocks on SIGINT/SIGTERM, the same os/signal.Notify
// idiom zk/debug_tools/datastream-host's main uses, generalized from
// os.Interrupt alone to also cover SIGTERM for container shutdowns.
func waitForShutdown(logger log.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
	logger.Info("shutting down indexer")
}
