package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"volmint/internal/model"
)

// Store provides Postgres persistence for option records and lifecycle
// events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertOptions inserts or updates option identities.
func (s *Store) UpsertOptions(ctx context.Context, options []model.OptionRecord) error {
	if len(options) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, opt := range options {
		batch.Queue(`
			INSERT INTO options (
				pool_address, token_id, strike_price, expiry_price, void, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (pool_address, token_id)
			DO UPDATE SET
				void = EXCLUDED.void,
				updated_at = now()
		`,
			opt.PoolAddress,
			int64(opt.TokenID),
			opt.StrikePrice,
			opt.ExpiryPrice,
			opt.Void,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range options {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertEvents appends lifecycle events.
func (s *Store) InsertEvents(ctx context.Context, events []model.LifecycleEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO option_events (
				kind, pool_address, token_id, recipient, amount, settlement,
				strike_price, expiry_price, volatility, block_number, tx_hash, event_ts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		`,
			ev.Kind,
			ev.PoolAddress,
			int64(ev.TokenID),
			ev.Recipient,
			ev.Amount,
			ev.Settlement,
			ev.StrikePrice,
			ev.ExpiryPrice,
			ev.Volatility,
			int64(ev.BlockNumber),
			ev.TxHash,
			int64(ev.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// AppendEvents satisfies the journal interface so the store can sit
// behind the hook directly.
func (s *Store) AppendEvents(events []model.LifecycleEvent) error {
	return s.InsertEvents(context.Background(), events)
}

// LoadState returns the stored value for a named state row.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var value uint64
	row := s.pool.QueryRow(ctx, `SELECT value FROM hook_state WHERE name=$1`, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return value, true, nil
}

// SaveState upserts a named state row.
func (s *Store) SaveState(ctx context.Context, name string, value uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hook_state (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, name, int64(value))
	return err
}
