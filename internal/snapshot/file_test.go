package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

func testSnapshot(at time.Time) *model.Snapshot {
	return &model.Snapshot{
		Timestamp:  at,
		Cash:       decimal.NewFromFloat(90986.4955),
		TotalValue: decimal.NewFromFloat(99991),
		Positions: map[string]model.Position{
			"RELIANCE.NS": {Shares: 9, AvgCost: decimal.NewFromFloat(1000.5)},
		},
		Trades: []model.Trade{{
			ID:           "t-1",
			Timestamp:    at,
			Instrument:   "RELIANCE.NS",
			Action:       model.ActionBuy,
			Shares:       9,
			Price:        decimal.NewFromFloat(1000.5),
			Fee:          decimal.NewFromFloat(9.0045),
			NetCashDelta: decimal.NewFromFloat(-9013.5045),
			Reason:       model.ReasonSignal,
		}},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)

	want := testSnapshot(at)
	if err := store.Persist(ctx, want); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a snapshot")
	}

	if !got.Cash.Equal(want.Cash) {
		t.Errorf("cash mismatch: %s vs %s", got.Cash, want.Cash)
	}
	pos := got.Positions["RELIANCE.NS"]
	if pos.Shares != 9 || !pos.AvgCost.Equal(decimal.NewFromFloat(1000.5)) {
		t.Errorf("position mismatch: %+v", pos)
	}
	if len(got.Trades) != 1 || got.Trades[0].ID != "t-1" {
		t.Fatalf("trade log mismatch: %+v", got.Trades)
	}
	if !got.Trades[0].NetCashDelta.Equal(want.Trades[0].NetCashDelta) {
		t.Errorf("net cash delta mismatch: %s", got.Trades[0].NetCashDelta)
	}
}

func TestFileStore_LoadLatestPicksNewest(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	base := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		snap := testSnapshot(base.Add(time.Duration(i) * 5 * time.Minute))
		snap.Cash = decimal.NewFromInt(int64(1000 + i))
		if err := store.Persist(ctx, snap); err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Cash.Equal(decimal.NewFromInt(1002)) {
		t.Errorf("expected newest snapshot (cash 1002), got %s", got.Cash)
	}
}

func TestFileStore_NeverOverwrites(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)

	if err := store.Persist(ctx, testSnapshot(at)); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := store.Persist(ctx, testSnapshot(at)); !errors.Is(err, ErrDuplicateSnapshot) {
		t.Errorf("expected ErrDuplicateSnapshot, got %v", err)
	}
}

func TestFileStore_EmptyDirLoadsNil(t *testing.T) {
	store := NewFileStore(t.TempDir())
	got, err := store.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil from empty store, got %+v", got)
	}
}

func TestFileStore_MissingDirLoadsNil(t *testing.T) {
	store := NewFileStore("/nonexistent/stonks-test-output")
	got, err := store.LoadLatest(context.Background())
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil) for missing dir, got (%+v, %v)", got, err)
	}
}
