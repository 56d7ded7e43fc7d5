// Package model defines the core domain types shared across the trading
// engine. All monetary values use shopspring/decimal — never float64 for
// money. Share counts are whole int64 (no fractional shares).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a strategy's per-instrument directional output for one cycle.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

// String returns the signal name for logging.
func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Trade actions recorded in the ledger. Hold never produces a trade.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Order reasons: why the execution engine placed the order.
const (
	ReasonSignal   = "signal"
	ReasonStopLoss = "stop_loss"
)

// Order is a request to mutate the portfolio, produced by the execution
// engine and applied by the ledger. FillPrice already includes slippage;
// Fee is the total fee on the notional.
type Order struct {
	Instrument string          `json:"instrument"`
	Action     string          `json:"action"` // ActionBuy or ActionSell
	Shares     int64           `json:"shares"`
	FillPrice  decimal.Decimal `json:"fill_price"`
	Fee        decimal.Decimal `json:"fee"`
	Reason     string          `json:"reason"` // ReasonSignal or ReasonStopLoss
}

// Trade is an immutable record of an accepted order. Once appended to the
// trade log these are never modified, deleted, or reordered.
type Trade struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Instrument   string          `json:"instrument"`
	Action       string          `json:"action"`
	Shares       int64           `json:"shares"`
	Price        decimal.Decimal `json:"price"`          // fill price incl. slippage
	Fee          decimal.Decimal `json:"fee"`            // fee paid on the notional
	NetCashDelta decimal.Decimal `json:"net_cash_delta"` // signed: negative on buy
	Reason       string          `json:"reason"`
}

// Position is one instrument's holding: share count and the share-weighted
// average purchase cost across the open buy lots. A position with zero
// shares is logically closed and carries AvgCost zero.
type Position struct {
	Shares  int64           `json:"shares"`
	AvgCost decimal.Decimal `json:"avg_cost"`
}

// PricePoint is one observation in an instrument's price history window.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// PortfolioView is a read-only copy of ledger state handed to the dashboard
// API. Mutating a view never affects the ledger.
type PortfolioView struct {
	Cash       decimal.Decimal     `json:"cash"`
	Positions  map[string]Position `json:"positions"`
	TotalValue decimal.Decimal     `json:"total_value"`
	TradeCount int                 `json:"trade_count"`
}

// Snapshot is a full, self-contained serialization of portfolio state at a
// point in time: positions plus the cumulative trade log. Snapshots are
// keyed by timestamp and never overwrite a prior snapshot.
type Snapshot struct {
	Timestamp  time.Time           `json:"timestamp"`
	Cash       decimal.Decimal     `json:"cash"`
	TotalValue decimal.Decimal     `json:"total_value"`
	Positions  map[string]Position `json:"positions"`
	Trades     []Trade             `json:"trades"`
}
