package strategy

import (
	"fmt"

	"github.com/Chintiw/stonks/internal/model"
)

// MACrossover signals on short/long simple-moving-average crossings:
// Buy on a golden cross (short SMA crossing above long), Sell on a dead
// cross (short crossing below). It is a pure function of the history
// window and signals only on the crossing cycle itself.
type MACrossover struct {
	short int
	long  int
}

// NewMACrossover creates the crossover strategy. The short window must be
// strictly less than the long window.
func NewMACrossover(short, long int) (*MACrossover, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("%w: ma windows short=%d long=%d", ErrInvalidParams, short, long)
	}
	return &MACrossover{short: short, long: long}, nil
}

func (s *MACrossover) Name() string { return TagMACrossover }

// Signal compares the SMAs at the current and previous cycle. With fewer
// than long+1 points there is no previous long SMA, so the signal is Hold.
func (s *MACrossover) Signal(_ string, history []model.PricePoint) model.Signal {
	if len(history) < s.long+1 {
		return model.Hold
	}

	prev := history[:len(history)-1]
	prevShort := sma(prev, s.short)
	prevLong := sma(prev, s.long)
	currShort := sma(history, s.short)
	currLong := sma(history, s.long)

	switch {
	case prevShort.LessThanOrEqual(prevLong) && currShort.GreaterThan(currLong):
		return model.Buy // golden cross
	case prevShort.GreaterThanOrEqual(prevLong) && currShort.LessThan(currLong):
		return model.Sell // dead cross
	default:
		return model.Hold
	}
}
