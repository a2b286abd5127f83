package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volmint/internal/chain"
	"volmint/internal/config"
	"volmint/internal/hook"
	"volmint/internal/ledger"
	"volmint/internal/model"
	"volmint/internal/oracle"
	"volmint/internal/pricing"
	"volmint/internal/storage"
	"volmint/internal/storage/postgres"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
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

	var admin common.Address
	if cfg.Admin != "" {
		admin, err = parseAddress(cfg.Admin, "admin")
		if err != nil {
			return err
		}
	}

	threshold, err := uint256.FromDecimal(cfg.Threshold)
	if err != nil {
		return fmt.Errorf("parse threshold: %w", err)
	}
	factor, err := uint256.FromDecimal(cfg.Factor)
	if err != nil {
		return fmt.Errorf("parse factor: %w", err)
	}

	pricer, err := pricing.NewPricer(pricing.Params{
		MinMultiplier:      cfg.MinMultiplier,
		MaxMultiplier:      cfg.MaxMultiplier,
		ThresholdLiquidity: threshold,
		FactorWad:          factor,
	})
	if err != nil {
		return fmt.Errorf("pricer params: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	book, journaled, err := replayJournal(cfg.Journal)
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

	observer := oracle.New(chainClient, pool, logger)
	h := hook.New(hook.Config{
		Admin:           admin,
		LookbackSeconds: cfg.LookbackSeconds,
	}, observer, pricer, book, sinks, logger)

	watcher := hook.NewWatcher(hook.WatcherConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, h, logger)
	watcher.MarkProcessed(journaled)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", pool.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("journal", cfg.Journal),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Uint64("lookback", cfg.LookbackSeconds),
	)

	if err := watcher.Run(ctx); err != nil {
		return err
	}

	if store != nil {
		if err := store.UpsertOptions(ctx, optionRecords(pool, book)); err != nil {
			return fmt.Errorf("upsert options: %w", err)
		}
	}

	logger.Info("watch complete", zap.Uint64("next_token_id", book.NextTokenID()))
	return nil
}

func parseAddress(input, name string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%s address %q is invalid", name, input)
	}
	return common.HexToAddress(input), nil
}

// replayJournal rebuilds the option book from the journal so restarts
// continue from the recorded state. The raw events are returned as well
// so the watcher can recognize swaps the journal already covers.
func replayJournal(path string) (*ledger.Ledger, []model.LifecycleEvent, error) {
	events, err := storage.ReadJournal(path)
	if err != nil {
		return nil, nil, err
	}
	book, err := ledger.Replay(events)
	if err != nil {
		return nil, nil, fmt.Errorf("replay journal: %w", err)
	}
	return book, events, nil
}

func optionRecords(pool common.Address, book *ledger.Ledger) []model.OptionRecord {
	tokens := book.Tokens()
	records := make([]model.OptionRecord, 0, len(tokens))
	for _, tok := range tokens {
		records = append(records, model.OptionRecord{
			PoolAddress: pool.Hex(),
			TokenID:     tok.ID,
			StrikePrice: tok.StrikePrice.Dec(),
			ExpiryPrice: tok.ExpiryPrice.Dec(),
			Void:        tok.Void,
		})
	}
	return records
}
