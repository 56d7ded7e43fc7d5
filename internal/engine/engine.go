// Package engine converts strategy signals into orders and applies the
// execution policy: slippage on the fill price, fees on the notional,
// position sizing, and the stop-loss override.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/ledger"
	"github.com/Chintiw/stonks/internal/model"
)

var (
	// ErrInvalidPolicy is returned when a policy parameter is out of range.
	ErrInvalidPolicy = errors.New("engine: invalid execution policy")
)

var one = decimal.NewFromInt(1)

// Policy holds the configured execution parameters.
type Policy struct {
	// FeeRate is the fee as a fraction of notional, e.g. 0.001.
	FeeRate decimal.Decimal

	// Slippage is the fractional fill-price adjustment, e.g. 0.0005.
	// Buys fill above the quoted price, sells below.
	Slippage decimal.Decimal

	// MaxPositionFraction caps a new position's notional at this fraction
	// of total portfolio value, e.g. 0.1.
	MaxPositionFraction decimal.Decimal

	// StopLossPct forces a full-position sell when the price drops this
	// fraction below the position's average cost, e.g. 0.02.
	StopLossPct decimal.Decimal
}

// Engine applies the execution policy and delegates accepted orders to the
// ledger. It holds no portfolio state of its own.
type Engine struct {
	policy Policy
}

// New validates the policy and creates an engine.
func New(p Policy) (*Engine, error) {
	switch {
	case p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(one):
		return nil, ErrInvalidPolicy
	case p.Slippage.IsNegative() || p.Slippage.GreaterThanOrEqual(one):
		return nil, ErrInvalidPolicy
	case p.MaxPositionFraction.LessThanOrEqual(decimal.Zero) || p.MaxPositionFraction.GreaterThan(one):
		return nil, ErrInvalidPolicy
	case p.StopLossPct.LessThanOrEqual(decimal.Zero) || p.StopLossPct.GreaterThanOrEqual(one):
		return nil, ErrInvalidPolicy
	}
	return &Engine{policy: p}, nil
}

// FillPrice returns the execution price for the given action after
// applying slippage.
func (e *Engine) FillPrice(action string, price decimal.Decimal) decimal.Decimal {
	if action == model.ActionBuy {
		return price.Mul(one.Add(e.policy.Slippage))
	}
	return price.Mul(one.Sub(e.policy.Slippage))
}

// Fee returns the fee charged on a notional amount.
func (e *Engine) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(e.policy.FeeRate)
}

// StopLossTriggered reports whether the stop-loss fires for an open
// position at the given price: price < avgCost * (1 - stopLossPct).
func (e *Engine) StopLossTriggered(pos model.Position, price decimal.Decimal) bool {
	if pos.Shares == 0 {
		return false
	}
	threshold := pos.AvgCost.Mul(one.Sub(e.policy.StopLossPct))
	return price.LessThan(threshold)
}

// Execute decides and executes at most one order for one instrument this
// cycle. The stop-loss check runs first, independent of the signal; if it
// fires, the signal is skipped for this instrument this cycle. Otherwise a
// Buy signal opens a position only when flat, a Sell signal closes the
// full position, and Hold is a no-op.
//
// The returned trade is nil when no order was placed. A ledger rejection
// is returned as an error; callers treat it as non-fatal and continue with
// the next instrument.
func (e *Engine) Execute(
	instrument string,
	sig model.Signal,
	price decimal.Decimal,
	totalValue decimal.Decimal,
	led *ledger.Ledger,
	at time.Time,
) (*model.Trade, error) {
	pos := led.Position(instrument)

	if e.StopLossTriggered(pos, price) {
		slog.Warn("stop-loss triggered",
			"instrument", instrument,
			"price", price.String(),
			"avg_cost", pos.AvgCost.String(),
			"shares", pos.Shares,
		)
		return e.submit(led, e.sellOrder(instrument, pos.Shares, price, model.ReasonStopLoss), at)
	}

	switch sig {
	case model.Buy:
		if pos.Shares != 0 {
			return nil, nil // only open from flat
		}
		fill := e.FillPrice(model.ActionBuy, price)
		shares := totalValue.Mul(e.policy.MaxPositionFraction).Div(fill).Floor().IntPart()
		if shares <= 0 {
			return nil, nil
		}
		notional := fill.Mul(decimal.NewFromInt(shares))
		order := model.Order{
			Instrument: instrument,
			Action:     model.ActionBuy,
			Shares:     shares,
			FillPrice:  fill,
			Fee:        e.Fee(notional),
			Reason:     model.ReasonSignal,
		}
		return e.submit(led, order, at)

	case model.Sell:
		if pos.Shares == 0 {
			return nil, nil // nothing to close
		}
		return e.submit(led, e.sellOrder(instrument, pos.Shares, price, model.ReasonSignal), at)

	default:
		return nil, nil
	}
}

// sellOrder builds a full or partial close at the slippage-adjusted price.
func (e *Engine) sellOrder(instrument string, shares int64, price decimal.Decimal, reason string) model.Order {
	fill := e.FillPrice(model.ActionSell, price)
	notional := fill.Mul(decimal.NewFromInt(shares))
	return model.Order{
		Instrument: instrument,
		Action:     model.ActionSell,
		Shares:     shares,
		FillPrice:  fill,
		Fee:        e.Fee(notional),
		Reason:     reason,
	}
}

func (e *Engine) submit(led *ledger.Ledger, order model.Order, at time.Time) (*model.Trade, error) {
	trade, err := led.Apply(order, at)
	if err != nil {
		slog.Warn("order rejected",
			"instrument", order.Instrument,
			"action", order.Action,
			"shares", order.Shares,
			"err", err,
		)
		return nil, err
	}

	slog.Info("order filled",
		"trade_id", trade.ID,
		"instrument", trade.Instrument,
		"action", trade.Action,
		"shares", trade.Shares,
		"fill_price", trade.Price.String(),
		"fee", trade.Fee.String(),
		"reason", trade.Reason,
	)
	return &trade, nil
}
