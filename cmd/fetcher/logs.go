package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopoolScope/internal/config"
	"autopoolScope/internal/logs"
	"autopoolScope/internal/metrics"
	"autopoolScope/internal/model"
	"autopoolScope/internal/storage"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Fetch raw logs for a block range without decoding",
		RunE:  runLogs,
	}
	addCommonFlags(cmd)
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	cmd.Flags().StringSlice("topic0", nil, "topic0 hashes (comma-separated)")
	cmd.Flags().Uint64("chunk-size", 0, "blocks per pre-chunk, 0 uses the chain profile")
	cmd.Flags().Int("chunk-workers", 2, "chunks fetched concurrently")
	return cmd
}

func runLogs(cmd *cobra.Command, _ []string) error {
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

	addresses, err := logs.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	topic0, err := logs.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	query := logs.Query{Addresses: addresses}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveMetrics(cfg.MetricsAddr, logger)

	client, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	to := cfg.ToBlock
	if to == 0 {
		if to, err = client.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	fetcher := newLogFetcher(cfg, client.RPC(), metrics.NewFetchMetrics(cfg.Chain.Name), logger)
	fetched, err := fetcher.FetchLogs(ctx, query, cfg.FromBlock, to)
	if err != nil {
		return err
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(fetched))
	for _, log := range fetched {
		records = append(records, logs.NewLogRecord(cfg.Chain.ChainID, cfg.Chain.Name, "", log, ingestedAt))
	}
	if err := storage.NewJsonlStorage(cfg.Out).PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	logger.Info("logs stored",
		zap.String("chain", cfg.Chain.Name),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", to),
		zap.Int("logs", len(records)),
		zap.String("out", cfg.Out),
	)
	return nil
}
