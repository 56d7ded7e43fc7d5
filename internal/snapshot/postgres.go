package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

// PostgresStore persists snapshots in PostgreSQL. Monetary values are
// stored as NUMERIC for exact decimal precision. The trade log lives in
// its own append-only table; re-inserting an already-persisted trade is a
// no-op, which makes Persist idempotent across retries.
//
// Schema:
//
//	CREATE TABLE snapshots (
//	    taken_at    TIMESTAMPTZ PRIMARY KEY,
//	    cash        NUMERIC NOT NULL,
//	    total_value NUMERIC NOT NULL,
//	    positions   JSONB   NOT NULL
//	);
//	CREATE TABLE trades (
//	    id             TEXT PRIMARY KEY,
//	    ts             TIMESTAMPTZ NOT NULL,
//	    instrument     TEXT    NOT NULL,
//	    action         TEXT    NOT NULL,
//	    shares         BIGINT  NOT NULL,
//	    price          NUMERIC NOT NULL,
//	    fee            NUMERIC NOT NULL,
//	    net_cash_delta NUMERIC NOT NULL,
//	    reason         TEXT    NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Persist(ctx context.Context, snap *model.Snapshot) error {
	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("snapshot: marshal positions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (taken_at, cash, total_value, positions)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4)`,
		snap.Timestamp, snap.Cash.String(), snap.TotalValue.String(), positions,
	)
	if err != nil {
		return fmt.Errorf("snapshot: insert snapshot: %w", err)
	}

	// The snapshot carries the cumulative log; only new trades insert.
	for _, t := range snap.Trades {
		_, err = tx.Exec(ctx,
			`INSERT INTO trades (id, ts, instrument, action, shares, price, fee, net_cash_delta, reason)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)
			 ON CONFLICT (id) DO NOTHING`,
			t.ID, t.Timestamp, t.Instrument, t.Action, t.Shares,
			t.Price.String(), t.Fee.String(), t.NetCashDelta.String(), t.Reason,
		)
		if err != nil {
			return fmt.Errorf("snapshot: insert trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadLatest(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	var cash, total string
	var positions []byte

	err := s.pool.QueryRow(ctx,
		`SELECT taken_at, cash::TEXT, total_value::TEXT, positions
		 FROM snapshots ORDER BY taken_at DESC LIMIT 1`).
		Scan(&snap.Timestamp, &cash, &total, &positions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load latest: %w", err)
	}

	snap.Cash, _ = decimal.NewFromString(cash)
	snap.TotalValue, _ = decimal.NewFromString(total)
	if err := json.Unmarshal(positions, &snap.Positions); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal positions: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, instrument, action, shares, price::TEXT, fee::TEXT, net_cash_delta::TEXT, reason
		 FROM trades ORDER BY ts, id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Trade
		var price, fee, delta string
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Instrument, &t.Action, &t.Shares,
			&price, &fee, &delta, &t.Reason); err != nil {
			return nil, err
		}
		t.Price, _ = decimal.NewFromString(price)
		t.Fee, _ = decimal.NewFromString(fee)
		t.NetCashDelta, _ = decimal.NewFromString(delta)
		snap.Trades = append(snap.Trades, t)
	}
	return &snap, rows.Err()
}
