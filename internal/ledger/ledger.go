// Package ledger implements the portfolio state machine: cash balance,
// per-instrument positions, and the append-only trade log.
//
// Apply is the single mutation entry point — no other path may change cash
// or positions. All monetary values use shopspring/decimal — never float64
// for money.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

var (
	// ErrInsufficientCash is returned when a buy would drive cash negative.
	// The order is rejected, not clamped.
	ErrInsufficientCash = errors.New("ledger: insufficient cash")

	// ErrInsufficientShares is returned when a sell requests more shares
	// than currently held. No short positions.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrInvalidOrder is returned for zero/negative share counts or an
	// unknown action.
	ErrInvalidOrder = errors.New("ledger: invalid order")
)

// CashScale is the number of decimal places cash deltas are rounded to.
// This is the documented monetary precision: snapshots round-trip exactly
// at this scale.
const CashScale int32 = 8

// Ledger owns the single portfolio. It is mutated exclusively through
// Apply; readers receive copies. The mutex exists for the dashboard API,
// which reads concurrently with the scheduler's cycles — there is still
// exactly one mutator.
type Ledger struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]model.Position
	trades    []model.Trade
}

// New creates a ledger with the given starting cash and no positions.
func New(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]model.Position),
	}
}

// NewFromSnapshot reconstructs a ledger from a persisted snapshot:
// cash, positions, and the cumulative trade log.
func NewFromSnapshot(snap *model.Snapshot) *Ledger {
	l := New(snap.Cash)
	for inst, pos := range snap.Positions {
		l.positions[inst] = pos
	}
	l.trades = append(l.trades, snap.Trades...)
	return l
}

// Apply validates and executes an order atomically. On acceptance it
// mutates cash and the position, appends exactly one trade to the log, and
// returns the trade. On rejection it returns a zero trade and a sentinel
// error; no state changes.
func (l *Ledger) Apply(order model.Order, at time.Time) (model.Trade, error) {
	if order.Shares <= 0 {
		return model.Trade{}, ErrInvalidOrder
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	shares := decimal.NewFromInt(order.Shares)
	notional := order.FillPrice.Mul(shares)

	var delta decimal.Decimal
	pos := l.positions[order.Instrument]

	switch order.Action {
	case model.ActionBuy:
		cost := notional.Add(order.Fee).Round(CashScale)
		if l.cash.LessThan(cost) {
			return model.Trade{}, ErrInsufficientCash
		}
		l.cash = l.cash.Sub(cost)

		// Share-count-weighted average over all open buy lots.
		oldShares := decimal.NewFromInt(pos.Shares)
		newTotal := oldShares.Add(shares)
		pos.AvgCost = pos.AvgCost.Mul(oldShares).Add(order.FillPrice.Mul(shares)).Div(newTotal)
		pos.Shares += order.Shares
		delta = cost.Neg()

	case model.ActionSell:
		if pos.Shares < order.Shares {
			return model.Trade{}, ErrInsufficientShares
		}
		proceeds := notional.Sub(order.Fee).Round(CashScale)
		l.cash = l.cash.Add(proceeds)
		pos.Shares -= order.Shares
		if pos.Shares == 0 {
			pos.AvgCost = decimal.Zero
		}
		delta = proceeds

	default:
		return model.Trade{}, ErrInvalidOrder
	}

	l.positions[order.Instrument] = pos

	trade := model.Trade{
		ID:           uuid.New().String(),
		Timestamp:    at,
		Instrument:   order.Instrument,
		Action:       order.Action,
		Shares:       order.Shares,
		Price:        order.FillPrice,
		Fee:          order.Fee,
		NetCashDelta: delta,
		Reason:       order.Reason,
	}
	l.trades = append(l.trades, trade)
	return trade, nil
}

// Valuation recomputes total portfolio value: cash plus the sum of
// shares × current price per open position. An instrument missing from
// prices is marked at its average cost (stale but conservative).
func (l *Ledger) Valuation(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash
	for inst, pos := range l.positions {
		if pos.Shares == 0 {
			continue
		}
		price, ok := prices[inst]
		if !ok {
			price = pos.AvgCost
		}
		total = total.Add(price.Mul(decimal.NewFromInt(pos.Shares)))
	}
	return total
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Position returns the holding for one instrument. A never-traded
// instrument reports a closed position.
func (l *Ledger) Position(instrument string) model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions[instrument]
}

// Trades returns a copy of the trade log in append order.
func (l *Ledger) Trades() []model.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// View builds a read-only portfolio view priced with the given prices.
func (l *Ledger) View(prices map[string]decimal.Decimal) model.PortfolioView {
	total := l.Valuation(prices)

	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]model.Position, len(l.positions))
	for inst, pos := range l.positions {
		positions[inst] = pos
	}
	return model.PortfolioView{
		Cash:       l.cash,
		Positions:  positions,
		TotalValue: total,
		TradeCount: len(l.trades),
	}
}

// Snapshot captures the full portfolio state for persistence: cash,
// positions, and the cumulative trade log.
func (l *Ledger) Snapshot(prices map[string]decimal.Decimal, at time.Time) *model.Snapshot {
	total := l.Valuation(prices)

	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]model.Position, len(l.positions))
	for inst, pos := range l.positions {
		positions[inst] = pos
	}
	trades := make([]model.Trade, len(l.trades))
	copy(trades, l.trades)

	return &model.Snapshot{
		Timestamp:  at,
		Cash:       l.cash,
		TotalValue: total,
		Positions:  positions,
		Trades:     trades,
	}
}
