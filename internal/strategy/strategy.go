// Package strategy implements the signal generators: moving-average
// crossover, z-score mean reversion, and cross-sectional momentum.
//
// A strategy yields a per-instrument directional signal from a price
// history window. Signals only express intent — position awareness
// (buy-only-when-flat, sell-only-when-held) is the execution engine's
// concern, so a strategy may emit Sell for an instrument that is not held.
package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

// Strategy tags recognized in configuration.
const (
	TagMACrossover   = "ma_crossover"
	TagMeanReversion = "mean_reversion"
	TagMomentum      = "momentum"
)

var (
	// ErrUnknownStrategy is returned for an unrecognized strategy tag.
	// This is fatal at startup, before any cycle runs.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy tag")

	// ErrInvalidParams is returned when strategy parameters are out of
	// range (e.g. short window >= long window).
	ErrInvalidParams = errors.New("strategy: invalid parameters")
)

// Strategy produces one directional signal per instrument per cycle.
// The history window is ordered oldest-first; the last point is the
// current cycle's price.
type Strategy interface {
	Name() string
	Signal(instrument string, history []model.PricePoint) model.Signal
}

// Params carries the per-strategy tuning knobs from configuration.
type Params struct {
	// Moving-average crossover.
	MAShort int
	MALong  int

	// Mean reversion.
	MRPeriod    int
	MRThreshold decimal.Decimal // z-score entry threshold
	MRCloseBand decimal.Decimal // |z| below this closes the position

	// Momentum.
	MomLookback  int
	MomTopN      int
	MomRebalance int // rebalance every N cycles; positions forward-fill between

	// Universe is the configured instrument processing order; momentum
	// ranks across it.
	Universe []string
}

// New dispatches a strategy tag to its implementation. Tags are a closed
// set; anything else is a configuration error.
func New(tag string, p Params) (Strategy, error) {
	switch tag {
	case TagMACrossover:
		return NewMACrossover(p.MAShort, p.MALong)
	case TagMeanReversion:
		return NewMeanReversion(p.MRPeriod, p.MRThreshold, p.MRCloseBand)
	case TagMomentum:
		return NewMomentum(p.Universe, p.MomLookback, p.MomTopN, p.MomRebalance)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
	}
}

// sma returns the simple moving average of the last n closing prices.
// Callers must ensure len(history) >= n and n > 0.
func sma(history []model.PricePoint, n int) decimal.Decimal {
	sum := decimal.Zero
	for _, pp := range history[len(history)-n:] {
		sum = sum.Add(pp.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
