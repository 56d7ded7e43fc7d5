package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

// MeanReversion signals on the z-score of the current price against a
// rolling mean: Buy when oversold (z below -threshold), Sell when
// overbought (z above +threshold), and Sell when the price has reverted
// near the mean (|z| inside the close band) — the execution engine turns
// that into a position close only if shares are actually held.
type MeanReversion struct {
	period    int
	threshold decimal.Decimal
	closeBand decimal.Decimal
}

// NewMeanReversion creates the z-score strategy. The close band must sit
// strictly inside the entry threshold.
func NewMeanReversion(period int, threshold, closeBand decimal.Decimal) (*MeanReversion, error) {
	if period < 2 {
		return nil, fmt.Errorf("%w: mean reversion period %d", ErrInvalidParams, period)
	}
	if threshold.LessThanOrEqual(decimal.Zero) || closeBand.IsNegative() ||
		closeBand.GreaterThanOrEqual(threshold) {
		return nil, fmt.Errorf("%w: mean reversion threshold %s close band %s",
			ErrInvalidParams, threshold, closeBand)
	}
	return &MeanReversion{period: period, threshold: threshold, closeBand: closeBand}, nil
}

func (s *MeanReversion) Name() string { return TagMeanReversion }

// Signal computes z = (price - mean) / std over the last period points.
// With insufficient history or zero variance the signal is Hold.
func (s *MeanReversion) Signal(_ string, history []model.PricePoint) model.Signal {
	if len(history) < s.period {
		return model.Hold
	}

	window := history[len(history)-s.period:]
	mean := sma(window, s.period)

	// Sample standard deviation. Transcendental math runs in float64,
	// the way transcendentals are handled elsewhere; the result feeds a
	// threshold comparison, not a monetary value.
	var sumSq float64
	meanF := mean.InexactFloat64()
	for _, pp := range window {
		diff := pp.Price.InexactFloat64() - meanF
		sumSq += diff * diff
	}
	std := math.Sqrt(sumSq / float64(s.period-1))
	if std == 0 {
		return model.Hold
	}

	last := window[len(window)-1].Price
	z := decimal.NewFromFloat((last.InexactFloat64() - meanF) / std)

	switch {
	case z.LessThan(s.threshold.Neg()):
		return model.Buy // oversold
	case z.GreaterThan(s.threshold):
		return model.Sell // overbought
	case z.Abs().LessThan(s.closeBand):
		return model.Sell // reverted near the mean; closes a held position
	default:
		return model.Hold
	}
}
