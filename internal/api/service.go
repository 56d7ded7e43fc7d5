// Package api exposes the read-only dashboard surface: portfolio,
// positions, trade log, and the latest persisted snapshot, plus a
// WebSocket stream of executed trades.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Chintiw/stonks/internal/ledger"
	"github.com/Chintiw/stonks/internal/model"
	"github.com/Chintiw/stonks/internal/snapshot"
)

// PriceSource supplies the last-known price per instrument for
// marked-to-market views. The scheduler implements it.
type PriceSource interface {
	LastPrices() map[string]decimal.Decimal
}

// Service handles dashboard queries. It never mutates the ledger; the
// scheduler is the only writer.
type Service struct {
	ledger *ledger.Ledger
	prices PriceSource
	store  snapshot.Store
}

// NewService creates a dashboard service.
func NewService(led *ledger.Ledger, prices PriceSource, store snapshot.Store) *Service {
	return &Service{ledger: led, prices: prices, store: store}
}

// PositionResponse is one open position in the positions listing.
type PositionResponse struct {
	Instrument  string          `json:"instrument"`
	Shares      int64           `json:"shares"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	LastPrice   decimal.Decimal `json:"last_price"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	view := s.ledger.View(s.prices.LastPrices())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// ListPositions handles GET /api/v1/positions
// Returns open positions marked to the last-known prices, sorted by
// instrument for stable output.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	prices := s.prices.LastPrices()
	view := s.ledger.View(prices)

	out := make([]PositionResponse, 0, len(view.Positions))
	for inst, pos := range view.Positions {
		last, ok := prices[inst]
		if !ok {
			last = pos.AvgCost
		}
		out = append(out, PositionResponse{
			Instrument:  inst,
			Shares:      pos.Shares,
			AvgCost:     pos.AvgCost,
			LastPrice:   last,
			MarketValue: last.Mul(decimal.NewFromInt(pos.Shares)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// ListTrades handles GET /api/v1/trades
// Returns the trade log in execution order; ?limit=N keeps only the N
// most recent entries.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.ledger.Trades()
	if trades == nil {
		trades = []model.Trade{}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if limit < len(trades) {
			trades = trades[len(trades)-limit:]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetLatestSnapshot handles GET /api/v1/snapshots/latest
func (s *Service) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadLatest(r.Context())
	if err != nil {
		writeError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		writeError(w, "no snapshot persisted yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
