package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopoolScope/internal/config"
	"autopoolScope/internal/decode"
	"autopoolScope/internal/logs"
	"autopoolScope/internal/metrics"
	"autopoolScope/internal/storage"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Fetch and decode vault events since the last checkpoint",
		RunE:  runEvents,
	}
	addCommonFlags(cmd)
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "emitting contract addresses (comma-separated)")
	cmd.Flags().String("abi", "", "ABI JSON file (defaults to the built-in vault ABI)")
	cmd.Flags().String("event", "Deposit", "event name")
	cmd.Flags().String("table", "", "output table name (defaults to <chain>_<event>)")
	cmd.Flags().Uint64("chunk-size", 0, "blocks per pre-chunk, 0 uses the chain profile")
	cmd.Flags().Int("chunk-workers", 2, "chunks fetched concurrently")
	cmd.Flags().Uint64("step-size", 0, "blocks stored per checkpoint, 0 means one step")
	cmd.Flags().String("checkpoint", "", "checkpoint file path, defaults to <out>/<table>.checkpoint.json (ignored with --pg-dsn)")
	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEvents(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	event, err := decode.ResolveEvent(cfg.ABIPath, cfg.Event)
	if err != nil {
		return err
	}
	addresses, err := logs.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveMetrics(cfg.MetricsAddr, logger)

	client, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	sink, pg, err := openTableSink(ctx, cfg.Common)
	if err != nil {
		return err
	}
	var checkpoint logs.Checkpointer = logs.NewFileCheckpoint(cfg.Checkpoint)
	if pg != nil {
		defer pg.Close()
		checkpoint = logs.NewNamedCheckpoint(pg, cfg.Table)
	}

	m := metrics.NewFetchMetrics(cfg.Chain.Name)
	fetcher := newLogFetcher(cfg, client.RPC(), m, logger)

	var rawSink storage.Storage
	if pg == nil {
		rawSink = storage.NewJsonlStorage(cfg.Out)
	}

	syncer := logs.NewSyncer(logs.SyncConfig{
		Table:     cfg.Table,
		Event:     event,
		Addresses: addresses,
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		StepSize:  cfg.StepSize,
	}, cfg.Chain.ChainID, fetcher, client, checkpoint, rawSink, sink, logger)

	logger.Info("events sync start",
		zap.String("chain", cfg.Chain.Name),
		zap.String("event", event.Name),
		zap.String("table", cfg.Table),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
	)
	return syncer.Run(ctx)
}

func newLogFetcher(cfg config.EventsConfig, caller logs.RPCCaller, m *metrics.FetchMetrics, logger *zap.Logger) *logs.Fetcher {
	transport := logs.NewRPCTransport(caller, cfg.Chain, logs.TransportConfig{
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		RequestTimeout: cfg.RequestTimeout,
	}, m, logger)
	return logs.NewFetcher(transport, cfg.Chain, logs.FetcherConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkWorkers: cfg.ChunkWorkers,
	}, decode.NewDecoder(decode.Config{}, logger), m, logger)
}
