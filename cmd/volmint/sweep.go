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
	"volmint/internal/hook"
	"volmint/internal/oracle"
	"volmint/internal/pricing"
	"volmint/internal/storage"
	"volmint/internal/storage/postgres"
)

func runSweep(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSweep(cfgFile, cmd.Flags())
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
	if len(cfg.Expiries) == 0 && len(cfg.TokenIDs) == 0 {
		return fmt.Errorf("at least one expiry or token id is required")
	}

	expiries := make([]*uint256.Int, 0, len(cfg.Expiries))
	for _, raw := range cfg.Expiries {
		price, err := uint256.FromDecimal(raw)
		if err != nil {
			return fmt.Errorf("expiry price %q: %w", raw, err)
		}
		expiries = append(expiries, price)
	}
	tokenIDs, err := config.ParseTokenIDs(cfg.TokenIDs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	book, _, err := replayJournal(cfg.Journal)
	if err != nil {
		return err
	}

	sinks := storage.MultiJournal{storage.NewJsonlJournal(cfg.Journal)}
	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	pricer, err := pricing.NewPricer(pricing.DefaultParams())
	if err != nil {
		return err
	}

	observer := oracle.New(chainClient, pool, logger)
	h := hook.New(hook.Config{LookbackSeconds: cfg.LookbackSeconds}, observer, pricer, book, sinks, logger)

	logger.Info("sweep start",
		zap.String("pool", pool.Hex()),
		zap.Int("expiries", len(expiries)),
		zap.Int("token_ids", len(tokenIDs)),
		zap.String("journal", cfg.Journal),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	var voided []uint64
	if len(expiries) > 0 {
		ids, err := h.SweepExpiries(ctx, expiries)
		if err != nil {
			return err
		}
		voided = append(voided, ids...)
	}
	if len(tokenIDs) > 0 {
		ids, err := h.SweepTokens(ctx, tokenIDs)
		if err != nil {
			return err
		}
		voided = append(voided, ids...)
	}

	if store != nil {
		if err := store.UpsertOptions(ctx, optionRecords(pool, book)); err != nil {
			return fmt.Errorf("upsert options: %w", err)
		}
	}

	logger.Info("sweep complete", zap.Int("voided", len(voided)), zap.Uint64s("token_ids", voided))
	return nil
}
