package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "volmint",
		Short:        "Synthetic option minting engine for V3 pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch pool swaps and mint options",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "RPC URL")
	watchCmd.Flags().String("pool", "", "V3 pool address")
	watchCmd.Flags().String("admin", "", "admin address for parameter setters")
	watchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	watchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	watchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	watchCmd.Flags().String("journal", "./data/options.jsonl", "lifecycle journal JSONL path")
	watchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	watchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	watchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	watchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	watchCmd.Flags().Uint64("lookback", 3600, "liquidity lookback window in seconds")
	watchCmd.Flags().Uint64("min-multiplier", 12, "strike floor multiplier (tenths)")
	watchCmd.Flags().Uint64("max-multiplier", 32, "strike ceiling multiplier (tenths)")
	watchCmd.Flags().String("threshold", "100000000000000000000", "liquidity threshold (wei)")
	watchCmd.Flags().String("factor", "1000000000000000000", "volume factor (wad)")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Void expired options from the journal",
		RunE:  runSweep,
	}

	sweepCmd.Flags().String("rpc", "", "RPC URL")
	sweepCmd.Flags().String("pool", "", "V3 pool address")
	sweepCmd.Flags().String("journal", "./data/options.jsonl", "lifecycle journal JSONL path")
	sweepCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	sweepCmd.Flags().Uint64("lookback", 3600, "liquidity lookback window in seconds")
	sweepCmd.Flags().StringSlice("expiry", nil, "expiry prices to sweep (comma-separated)")
	sweepCmd.Flags().StringSlice("token-id", nil, "token ids to sweep (comma-separated)")
	sweepCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(sweepCmd)

	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print a one-shot implied volatility estimate",
		RunE:  runEstimate,
	}

	estimateCmd.Flags().String("rpc", "", "RPC URL")
	estimateCmd.Flags().String("pool", "", "V3 pool address")
	estimateCmd.Flags().Uint64("lookback", 3600, "liquidity lookback window in seconds")
	estimateCmd.Flags().Uint64("past-blocks", 1200, "blocks back for the past fee-growth sample")
	estimateCmd.Flags().Uint64("tte", 0, "time to expiry in seconds")
	estimateCmd.Flags().Uint64("total-duration", 0, "total option duration in seconds, 0 means daily estimate")
	estimateCmd.Flags().String("rate", "0", "risk-free rate (wad)")
	estimateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(estimateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
