package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volmint/internal/chain"
	"volmint/internal/config"
	"volmint/internal/oracle"
	"volmint/internal/volatility"
)

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEstimate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pool, err := parseAddress(cfg.Pool, "pool")
	if err != nil {
		return err
	}
	if cfg.PastBlocks == 0 {
		return fmt.Errorf("past-blocks must be greater than zero")
	}

	rate, err := uint256.FromDecimal(cfg.RiskFreeRate)
	if err != nil {
		return fmt.Errorf("parse rate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	observer := oracle.New(chainClient, pool, logger)

	meta, err := observer.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("pool metadata: %w", err)
	}
	snap, err := observer.Snapshot(ctx, cfg.LookbackSeconds)
	if err != nil {
		return fmt.Errorf("pool snapshot: %w", err)
	}

	latest, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	if cfg.PastBlocks >= latest {
		return fmt.Errorf("past-blocks %d exceeds chain height %d", cfg.PastBlocks, latest)
	}

	now, err := observer.FeeGrowthAt(ctx, latest)
	if err != nil {
		return fmt.Errorf("fee growth now: %w", err)
	}
	past, err := observer.FeeGrowthAt(ctx, latest-cfg.PastBlocks)
	if err != nil {
		return fmt.Errorf("fee growth past: %w", err)
	}

	var vol *uint256.Int
	if cfg.TotalDuration > 0 {
		vol, err = volatility.Estimate(meta, snap, past, now, cfg.TimeToExpiry, rate, cfg.TotalDuration)
	} else {
		vol, err = volatility.Estimate24H(meta, snap, past, now)
	}
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	logger.Info("volatility estimate",
		zap.String("pool", pool.Hex()),
		zap.Uint64("window_seconds", now.Timestamp-past.Timestamp),
		zap.Uint64("tte", cfg.TimeToExpiry),
		zap.Uint64("total_duration", cfg.TotalDuration),
		zap.String("volatility_wad", vol.Dec()),
	)

	fmt.Println(vol.Dec())
	return nil
}
