// Command tokenmetadata runs only the Token Metadata Task (§4 C6) against
// every configured chain, for deployments that split metadata fetching
// onto its own process separate from the block sync driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/traitmeta/evmindexer/config"
	"github.com/traitmeta/evmindexer/logging"
	"github.com/traitmeta/evmindexer/rpcgateway"
	"github.com/traitmeta/evmindexer/storage"
	"github.com/traitmeta/evmindexer/tokentask"
)

func main() {
	app := &cli.App{
		Name:   "tokenmetadata",
		Usage:  "fetch ERC-20/721/1155 metadata for newly observed tokens",
		Flags:  []cli.Flag{config.ConfigFlag},
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

	for _, chainCfg := range cfg.Chains {
		gateway := rpcgateway.New(chainCfg.Name, chainCfg.RPCEndpoints, logger)
		task := tokentask.New(store, gateway, chainCfg.PollInterval*10, chainCfg.BatchSize, logger)
		go task.Run(runCtx)
		logger.Info("token metadata task started", "chain", chainCfg.Name)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
	logger.Info("shutting down tokenmetadata")
	cancel()
	return nil
}
