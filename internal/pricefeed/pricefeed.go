// Package pricefeed defines the market-data boundary: last-known prices
// for a set of instruments, with failures surfaced per instrument so one
// bad quote never aborts the rest of the cycle.
package pricefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned per instrument when no quote could be
// obtained. The affected instrument degrades to Hold for the cycle and is
// retried implicitly on the next one.
var ErrPriceUnavailable = errors.New("pricefeed: price unavailable")

// Result is one instrument's outcome: either a price or an error, never
// both.
type Result struct {
	Price decimal.Decimal
	Err   error
}

// Feed fetches last-known prices. The returned map holds an entry for
// every requested instrument; failed instruments carry a non-nil Err.
type Feed interface {
	Prices(ctx context.Context, instruments []string) map[string]Result
}

// StaticFeed serves prices from an in-memory map. Used for testing and
// development; instruments without a price report ErrPriceUnavailable.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticFeed creates an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{prices: make(map[string]decimal.Decimal)}
}

// Set installs or updates one instrument's price.
func (f *StaticFeed) Set(instrument string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[instrument] = price
}

// Unset removes an instrument's price, making subsequent fetches fail for
// that instrument.
func (f *StaticFeed) Unset(instrument string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, instrument)
}

func (f *StaticFeed) Prices(_ context.Context, instruments []string) map[string]Result {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]Result, len(instruments))
	for _, inst := range instruments {
		if price, ok := f.prices[inst]; ok {
			out[inst] = Result{Price: price}
		} else {
			out[inst] = Result{Err: ErrPriceUnavailable}
		}
	}
	return out
}
