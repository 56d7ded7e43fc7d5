package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/config"
	"github.com/Chintiw/stonks/internal/engine"
	"github.com/Chintiw/stonks/internal/ledger"
	"github.com/Chintiw/stonks/internal/model"
	"github.com/Chintiw/stonks/internal/pricefeed"
	"github.com/Chintiw/stonks/internal/snapshot"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// fixedStrategy answers with a canned signal per instrument.
type fixedStrategy struct {
	signals map[string]model.Signal
}

func (fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) Signal(instrument string, _ []model.PricePoint) model.Signal {
	return s.signals[instrument]
}

// recordingStore captures persisted snapshots and can be told to fail.
type recordingStore struct {
	mu    sync.Mutex
	snaps []*model.Snapshot
	fail  error
}

func (r *recordingStore) Persist(_ context.Context, snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recordingStore) LoadLatest(context.Context) (*model.Snapshot, error) { return nil, nil }

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

// countingFeed wraps another feed and counts calls; an optional gate
// blocks each call until released.
type countingFeed struct {
	inner pricefeed.Feed
	gate  chan struct{}

	mu    sync.Mutex
	calls int
}

func (c *countingFeed) Prices(ctx context.Context, instruments []string) map[string]pricefeed.Result {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.gate != nil {
		<-c.gate
	}
	return c.inner.Prices(ctx, instruments)
}

func (c *countingFeed) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testPolicy(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(engine.Policy{
		FeeRate:             d(0.001),
		Slippage:            d(0.0005),
		MaxPositionFraction: d(0.1),
		StopLossPct:         d(0.02),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

var tradingWindow = config.Window{Open: 9*60 + 15, Close: 15*60 + 30}

func newTestScheduler(t *testing.T, feed pricefeed.Feed, strat fixedStrategy, led *ledger.Ledger, store snapshot.Store, at time.Time) *Scheduler {
	t.Helper()
	return New(Options{
		Interval:    time.Minute,
		Window:      tradingWindow,
		Location:    time.UTC,
		Instruments: []string{"AAA", "BBB"},
		HistoryMax:  5,
		Feed:        feed,
		Strategy:    strat,
		Engine:      testPolicy(t),
		Ledger:      led,
		Store:       store,
		Now:         func() time.Time { return at },
	})
}

func TestCycleBuysAndPersists(t *testing.T) {
	feed := pricefeed.NewStaticFeed()
	feed.Set("AAA", d(100))
	feed.Set("BBB", d(50))

	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, feed, fixedStrategy{signals: map[string]model.Signal{
		"AAA": model.Buy,
		"BBB": model.Hold,
	}}, led, store, at)

	s.Tick(context.Background())

	if got := led.Position("AAA").Shares; got == 0 {
		t.Fatal("expected AAA position after buy signal")
	}
	if got := led.Position("BBB").Shares; got != 0 {
		t.Fatalf("BBB held %d shares despite hold signal", got)
	}
	if store.count() != 1 {
		t.Fatalf("persisted %d snapshots, want 1", store.count())
	}
	snap := store.snaps[0]
	if !snap.Timestamp.Equal(at) {
		t.Fatalf("snapshot timestamp = %v, want %v", snap.Timestamp, at)
	}
	if len(snap.Trades) != 1 {
		t.Fatalf("snapshot has %d trades, want 1", len(snap.Trades))
	}
}

func TestOutsideWindowIsNoOp(t *testing.T) {
	feed := &countingFeed{inner: pricefeed.NewStaticFeed()}
	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) // before open

	s := newTestScheduler(t, feed, fixedStrategy{}, led, store, at)
	s.Tick(context.Background())

	if feed.callCount() != 0 {
		t.Fatal("price feed queried outside trading window")
	}
	if store.count() != 0 {
		t.Fatal("snapshot persisted outside trading window")
	}
}

func TestPriceFailureIsolatesInstrument(t *testing.T) {
	static := pricefeed.NewStaticFeed()
	static.Set("BBB", d(50)) // AAA intentionally absent

	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, static, fixedStrategy{signals: map[string]model.Signal{
		"AAA": model.Buy,
		"BBB": model.Buy,
	}}, led, store, at)

	s.Tick(context.Background())

	if got := led.Position("AAA").Shares; got != 0 {
		t.Fatalf("AAA traded %d shares with no price", got)
	}
	if got := led.Position("BBB").Shares; got == 0 {
		t.Fatal("BBB should still trade when AAA's price fails")
	}
	if store.count() != 1 {
		t.Fatal("cycle should persist despite a per-instrument price failure")
	}
}

func TestOverlappingTickIsDropped(t *testing.T) {
	static := pricefeed.NewStaticFeed()
	static.Set("AAA", d(100))
	static.Set("BBB", d(50))
	feed := &countingFeed{inner: static, gate: make(chan struct{})}

	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, feed, fixedStrategy{}, led, store, at)

	done := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside the feed call, then tick
	// again: it must return immediately without a second feed call.
	for feed.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	s.Tick(context.Background())
	if feed.callCount() != 1 {
		t.Fatalf("feed called %d times, overlapping tick should be dropped", feed.callCount())
	}

	close(feed.gate)
	<-done
}

func TestPersistFailureDoesNotRollBack(t *testing.T) {
	feed := pricefeed.NewStaticFeed()
	feed.Set("AAA", d(100))
	feed.Set("BBB", d(50))

	led := ledger.New(d(100000))
	store := &recordingStore{fail: context.DeadlineExceeded}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, feed, fixedStrategy{signals: map[string]model.Signal{
		"AAA": model.Buy,
	}}, led, store, at)

	s.Tick(context.Background())

	if got := led.Position("AAA").Shares; got == 0 {
		t.Fatal("trade should survive a snapshot persistence failure")
	}
	if len(led.Trades()) != 1 {
		t.Fatalf("trade log has %d entries, want 1", len(led.Trades()))
	}
}

func TestHistoryWindowIsBounded(t *testing.T) {
	feed := pricefeed.NewStaticFeed()
	feed.Set("AAA", d(100))
	feed.Set("BBB", d(50))

	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, feed, fixedStrategy{}, led, store, at)
	for i := 0; i < 10; i++ {
		s.Tick(context.Background())
	}

	if got := len(s.histories["AAA"]); got != 5 {
		t.Fatalf("history holds %d points, want cap of 5", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	feed := pricefeed.NewStaticFeed()
	feed.Set("AAA", d(100))
	feed.Set("BBB", d(50))

	led := ledger.New(d(100000))
	store := &recordingStore{}
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	s := newTestScheduler(t, feed, fixedStrategy{}, led, store, at)
	s.opts.Interval = time.Hour // only the initial immediate cycle runs

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if store.count() != 1 {
		t.Fatalf("persisted %d snapshots, want the single startup cycle", store.count())
	}
}
