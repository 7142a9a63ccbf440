package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopoolScope/internal/cache"
	"autopoolScope/internal/chain"
	"autopoolScope/internal/config"
	"autopoolScope/internal/logs"
	"autopoolScope/internal/metrics"
	"autopoolScope/internal/multicall"
	"autopoolScope/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch autopool vault state at many blocks through Multicall3",
		RunE:  runState,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringSlice("vault", nil, "autopool vault addresses (comma-separated)")
	cmd.Flags().StringSlice("blocks", nil, "explicit block numbers (comma-separated)")
	cmd.Flags().Uint64("from", 0, "first block when --blocks is not given")
	cmd.Flags().Uint64("to", 0, "last block when --blocks is not given, 0 means latest")
	cmd.Flags().Uint64("step", 7200, "block spacing between from and to")
	cmd.Flags().String("semaphore-limits", "500,200,50,20,2", "decreasing multicall concurrency schedule")
	cmd.Flags().Bool("include-block", true, "add a block column")
	cmd.Flags().Bool("skip-cache", false, "bypass the response cache")
	cmd.Flags().String("cache-dir", "", "response cache directory (disabled when empty)")
	cmd.Flags().String("table", "", "output table name (defaults to <chain>_autopool_state)")
	cmd.Flags().Duration("max-latency", 0, "skip the fetch when the stored table is younger than this")
	return cmd
}

func runState(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadState(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	vaults, err := logs.ParseAddresses(cfg.Vaults)
	if err != nil {
		return err
	}
	if len(vaults) == 0 {
		return fmt.Errorf("vault list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveMetrics(cfg.MetricsAddr, logger)

	sink, pg, err := openTableSink(ctx, cfg.Common)
	if err != nil {
		return err
	}
	if pg != nil {
		defer pg.Close()
	}
	if cfg.MaxLatency > 0 {
		stale, err := sink.ShouldUpdateTable(ctx, cfg.Table, cfg.MaxLatency)
		if err != nil {
			return err
		}
		if !stale {
			logger.Info("table is fresh, nothing to do", zap.String("table", cfg.Table), zap.Duration("max_latency", cfg.MaxLatency))
			return nil
		}
	}

	client, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	latest, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	blocks, err := cfg.BlockList(latest)
	if err != nil {
		return err
	}

	tokens := multicall.NewTokenMetaCache()
	var calls []multicall.Call
	for _, vault := range vaults {
		meta, err := tokens.Load(ctx, client, chain.Multicall3Address, vault, latest)
		if err != nil {
			return fmt.Errorf("vault %s metadata: %w", vault.Hex(), err)
		}
		vaultCalls, err := multicall.AutopoolCalls(meta.Label(), vault, meta.Decimals)
		if err != nil {
			return err
		}
		calls = append(calls, vaultCalls...)
	}

	m := metrics.NewFetchMetrics(cfg.Chain.Name)
	fetcher := state.NewFetcher(client, cfg.Chain, store, state.Config{
		Limits:         cfg.SemaphoreLimits,
		RequestTimeout: cfg.RequestTimeout,
	}, m, logger)

	logger.Info("state fetch start",
		zap.String("chain", cfg.Chain.Name),
		zap.Int("vaults", len(vaults)),
		zap.Int("calls", len(calls)),
		zap.Int("blocks", len(blocks)),
		zap.Ints("limits", cfg.SemaphoreLimits),
	)

	table, err := fetcher.FetchState(ctx, calls, blocks, state.Options{
		IncludeBlock: cfg.IncludeBlock,
		SkipCache:    cfg.SkipCache,
	})
	if err != nil {
		return err
	}
	if err := sink.WriteTable(ctx, cfg.Table, table.Records(cfg.Chain.ChainID)); err != nil {
		return fmt.Errorf("store %s: %w", cfg.Table, err)
	}

	logger.Info("state stored", zap.String("table", cfg.Table), zap.Int("rows", len(table.Rows)))
	return nil
}

func openCache(cfg config.StateConfig) (cache.Store, error) {
	if cfg.CacheDir == "" || cfg.SkipCache {
		return nil, nil
	}
	disk, err := cache.OpenPebble(cfg.CacheDir, cfg.Chain.ChainID)
	if err != nil {
		return nil, err
	}
	tiered, err := cache.NewTiered(disk, 0)
	if err != nil {
		disk.Close()
		return nil, err
	}
	return tiered, nil
}
