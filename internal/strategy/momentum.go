package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/model"
)

// Momentum ranks the universe by mean return over a lookback window and
// holds the top N instruments: Buy while a member of the top set, Sell
// once it drops out. The top set is recomputed every rebalance cycles and
// forward-filled in between; that membership is explicit rolling state
// owned by this strategy.
//
// Determinism: the scheduler evaluates instruments in the configured
// universe order once per cycle, so a new cycle starts exactly when the
// first universe instrument is queried. Scores for instruments not yet
// queried this cycle carry over from the previous cycle, which is the
// forward-fill the rebalance semantics call for. Score ties break by
// universe order.
type Momentum struct {
	universe  []string
	lookback  int
	topN      int
	rebalance int

	scores  map[string]decimal.Decimal
	topSet  map[string]bool
	cycle   int
	primed  map[string]bool // instruments with enough history to score
	ordinal map[string]int  // universe position, for tie-breaks
}

// NewMomentum creates the momentum strategy over the configured universe.
func NewMomentum(universe []string, lookback, topN, rebalance int) (*Momentum, error) {
	if len(universe) == 0 || lookback < 1 || topN < 1 || topN > len(universe) || rebalance < 1 {
		return nil, fmt.Errorf("%w: momentum universe=%d lookback=%d topN=%d rebalance=%d",
			ErrInvalidParams, len(universe), lookback, topN, rebalance)
	}
	ordinal := make(map[string]int, len(universe))
	for i, inst := range universe {
		ordinal[inst] = i
	}
	return &Momentum{
		universe:  universe,
		lookback:  lookback,
		topN:      topN,
		rebalance: rebalance,
		scores:    make(map[string]decimal.Decimal),
		topSet:    make(map[string]bool),
		primed:    make(map[string]bool),
		ordinal:   ordinal,
	}, nil
}

func (s *Momentum) Name() string { return TagMomentum }

// Signal updates this instrument's momentum score from its history and
// reports top-set membership. Instruments outside the configured universe
// always Hold.
func (s *Momentum) Signal(instrument string, history []model.PricePoint) model.Signal {
	if _, ok := s.ordinal[instrument]; !ok {
		return model.Hold
	}

	if instrument == s.universe[0] {
		if s.cycle%s.rebalance == 0 {
			s.retarget()
		}
		s.cycle++
	}

	s.observe(instrument, history)

	if !s.primed[instrument] {
		return model.Hold
	}
	if s.topSet[instrument] {
		return model.Buy
	}
	return model.Sell
}

// observe stores the mean return over the lookback window. Needs
// lookback+1 prices to form lookback returns.
func (s *Momentum) observe(instrument string, history []model.PricePoint) {
	if len(history) < s.lookback+1 {
		s.primed[instrument] = false
		return
	}

	window := history[len(history)-s.lookback-1:]
	sum := decimal.Zero
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Price
		if prev.IsZero() {
			s.primed[instrument] = false
			return
		}
		sum = sum.Add(window[i].Price.Sub(prev).Div(prev))
	}
	s.scores[instrument] = sum.Div(decimal.NewFromInt(int64(s.lookback)))
	s.primed[instrument] = true
}

// retarget recomputes the top-N set from the current scores.
func (s *Momentum) retarget() {
	var ranked []string
	for _, inst := range s.universe {
		if s.primed[inst] {
			ranked = append(ranked, inst)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := s.scores[ranked[i]], s.scores[ranked[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return s.ordinal[ranked[i]] < s.ordinal[ranked[j]]
	})

	s.topSet = make(map[string]bool, s.topN)
	for i, inst := range ranked {
		if i == s.topN {
			break
		}
		s.topSet[inst] = true
	}
}
