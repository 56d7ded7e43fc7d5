// Package scheduler drives the trading cadence: on each eligible tick it
// fetches prices, evaluates the strategy per instrument, lets the
// execution engine mutate the ledger, and persists a snapshot.
//
// Cycles are strictly sequential. The ticker may fire while a previous
// cycle is still running; that tick is dropped, never queued, because
// overlapping cycles against the same ledger would break the
// single-mutator discipline.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/config"
	"github.com/Chintiw/stonks/internal/engine"
	"github.com/Chintiw/stonks/internal/ledger"
	"github.com/Chintiw/stonks/internal/metrics"
	"github.com/Chintiw/stonks/internal/model"
	"github.com/Chintiw/stonks/internal/pricefeed"
	"github.com/Chintiw/stonks/internal/snapshot"
	"github.com/Chintiw/stonks/internal/strategy"
)

// cycle outcomes for metrics.
const (
	outcomeTraded  = "traded"
	outcomeClosed  = "closed"
	outcomeSkipped = "skipped"
)

// TradePublisher receives executed trades for fan-out (the dashboard's
// WebSocket hub). May be nil.
type TradePublisher interface {
	PublishTrade(trade model.Trade)
}

// Options wires the scheduler's collaborators and cadence settings.
type Options struct {
	Interval    time.Duration
	Window      config.Window
	Location    *time.Location
	Instruments []string // fixed processing order
	HistoryMax  int

	Feed      pricefeed.Feed
	Strategy  strategy.Strategy
	Engine    *engine.Engine
	Ledger    *ledger.Ledger
	Store     snapshot.Store
	Publisher TradePublisher // optional

	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Scheduler owns the price history buffers and the last-known price per
// instrument. It is the ledger's only mutator (via the engine).
type Scheduler struct {
	opts Options

	// cycleMu serializes cycles; TryLock implements the skip-not-queue
	// rule for overlapping ticks.
	cycleMu sync.Mutex

	histories  map[string][]model.PricePoint
	lastPrices map[string]decimal.Decimal
}

// New creates a scheduler. Collaborators must be non-nil except
// Publisher.
func New(opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		opts:       opts,
		histories:  make(map[string][]model.PricePoint, len(opts.Instruments)),
		lastPrices: make(map[string]decimal.Decimal, len(opts.Instruments)),
	}
}

// Run executes one immediate cycle, then ticks at the configured
// interval until the context is cancelled. There is no terminal state of
// its own; cancellation is the only exit.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started",
		"interval", s.opts.Interval.String(),
		"instruments", s.opts.Instruments,
		"strategy", s.opts.Strategy.Name(),
	)

	s.Tick(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick attempts one cycle. If a previous cycle is still running the tick
// is dropped.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		slog.Warn("cycle still running, tick dropped")
		metrics.CyclesTotal.WithLabelValues(outcomeSkipped).Inc()
		return
	}
	defer s.cycleMu.Unlock()
	s.runCycle(ctx)
}

// LastPrices returns a copy of the last-known price per instrument, for
// the dashboard's portfolio view.
func (s *Scheduler) LastPrices() map[string]decimal.Decimal {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	out := make(map[string]decimal.Decimal, len(s.lastPrices))
	for k, v := range s.lastPrices {
		out[k] = v
	}
	return out
}

// runCycle is one full pass: prices → valuation → signals/execution →
// persistence. Callers hold cycleMu.
func (s *Scheduler) runCycle(ctx context.Context) {
	now := s.opts.Now().In(s.opts.Location)

	if !s.opts.Window.Contains(now) {
		slog.Info("outside trading window, cycle is a no-op", "time", now.Format("15:04"))
		metrics.CyclesTotal.WithLabelValues(outcomeClosed).Inc()
		return
	}

	start := time.Now()
	results := s.opts.Feed.Prices(ctx, s.opts.Instruments)

	// Record fresh prices into the rolling history windows first, so the
	// strategy sees the current cycle's price as the last point.
	for _, inst := range s.opts.Instruments {
		r := results[inst]
		if r.Err != nil {
			slog.Warn("price unavailable, instrument degraded to hold",
				"instrument", inst, "err", r.Err)
			metrics.PriceErrors.WithLabelValues(inst).Inc()
			continue
		}
		s.lastPrices[inst] = r.Price
		s.observe(inst, model.PricePoint{Time: now, Price: r.Price})
	}

	totalValue := s.opts.Ledger.Valuation(s.lastPrices)

	for _, inst := range s.opts.Instruments {
		if results[inst].Err != nil {
			continue // no current price: Hold, no stop-loss evaluation
		}
		price := results[inst].Price

		sig := s.opts.Strategy.Signal(inst, s.histories[inst])

		trade, err := s.opts.Engine.Execute(inst, sig, price, totalValue, s.opts.Ledger, now)
		if err != nil {
			// Rejections are local and recoverable; the cycle continues.
			metrics.OrderRejections.WithLabelValues(rejectReason(err)).Inc()
			continue
		}
		if trade != nil {
			metrics.TradesTotal.WithLabelValues(trade.Action, trade.Reason).Inc()
			if s.opts.Publisher != nil {
				s.opts.Publisher.PublishTrade(*trade)
			}
		}
	}

	s.updateGauges()
	s.persist(ctx, now)

	metrics.CyclesTotal.WithLabelValues(outcomeTraded).Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) observe(inst string, pp model.PricePoint) {
	h := append(s.histories[inst], pp)
	if len(h) > s.opts.HistoryMax {
		h = h[len(h)-s.opts.HistoryMax:]
	}
	s.histories[inst] = h
}

// persist hands the snapshot to the store. Failure is surfaced but never
// rolls back the ledger — the in-memory state stays authoritative until
// the next successful persist.
func (s *Scheduler) persist(ctx context.Context, now time.Time) {
	snap := s.opts.Ledger.Snapshot(s.lastPrices, now)
	if err := s.opts.Store.Persist(ctx, snap); err != nil {
		slog.Error("snapshot persistence failed, ledger remains authoritative", "err", err)
		metrics.SnapshotFailures.Inc()
		return
	}
	slog.Info("snapshot persisted",
		"timestamp", snap.Timestamp.Format(time.RFC3339),
		"total_value", snap.TotalValue.String(),
		"trades", len(snap.Trades),
	)
}

func (s *Scheduler) updateGauges() {
	view := s.opts.Ledger.View(s.lastPrices)
	metrics.PortfolioValue.Set(view.TotalValue.InexactFloat64())
	metrics.CashBalance.Set(view.Cash.InexactFloat64())

	open := 0
	for _, pos := range view.Positions {
		if pos.Shares > 0 {
			open++
		}
	}
	metrics.OpenPositions.Set(float64(open))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient_shares"
	default:
		return "other"
	}
}
