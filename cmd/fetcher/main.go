package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/config"
	"autopoolScope/internal/metrics"
	"autopoolScope/internal/storage"
	"autopoolScope/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "fetcher",
		Short:        "Autopool on-chain data fetcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.AddCommand(newEventsCmd(), newLogsCmd(), newStateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("chain", "eth", fmt.Sprintf("chain profile %v", chain.Names()))
	cmd.Flags().String("rpc", "", "RPC URL (defaults to the chain's Alchemy endpoint)")
	cmd.Flags().String("alchemy-key", "", "Alchemy API key (or ALCHEMY_KEY)")
	cmd.Flags().Int("max-retries", 3, "retries of provider-limit errors before splitting")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("request-timeout", 30*time.Second, "timeout of a single RPC call")
	cmd.Flags().String("out", "./data", "output directory for JSONL tables")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces JSONL tables when set")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// dial connects to the configured endpoint and checks it serves the expected chain.
func dial(ctx context.Context, common config.Common) (*chain.Client, error) {
	client, err := chain.NewClient(ctx, common.Chain, common.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	if err := client.VerifyChain(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

// tableSink is the union of table sink capabilities shared by JSONL and Postgres.
type tableSink interface {
	storage.TableWriter
	storage.TableLoader
	storage.FreshnessChecker
}

func openTableSink(ctx context.Context, common config.Common) (tableSink, *postgres.Store, error) {
	if common.PGDSN == "" {
		return storage.NewJsonlStorage(common.Out), nil, nil
	}
	store, err := postgres.NewStore(ctx, common.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, store, nil
}
