// Package metrics provides Prometheus instrumentation for the trading
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts scheduler cycles, partitioned by outcome:
	// "traded", "closed" (outside trading window), "skipped" (overlap).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stonks_cycles_total",
		Help: "Total scheduler cycles by outcome",
	}, []string{"outcome"})

	// CycleDuration tracks full-cycle latency (fetch → persist).
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stonks_cycle_duration_seconds",
		Help:    "Trading cycle duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// TradesTotal counts executed trades by action and reason.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stonks_trades_total",
		Help: "Total trades executed",
	}, []string{"action", "reason"})

	// OrderRejections counts ledger rejections by reason.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stonks_order_rejections_total",
		Help: "Orders rejected by the ledger",
	}, []string{"reason"})

	// PriceErrors counts per-instrument price fetch failures.
	PriceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stonks_price_errors_total",
		Help: "Price fetch failures per instrument",
	}, []string{"instrument"})

	// SnapshotFailures counts failed persistence attempts.
	SnapshotFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stonks_snapshot_failures_total",
		Help: "Snapshot persistence failures",
	})

	// PortfolioValue is the latest derived total portfolio value.
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stonks_portfolio_value",
		Help: "Total portfolio value (cash + marked positions)",
	})

	// CashBalance is the latest ledger cash balance.
	CashBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stonks_cash_balance",
		Help: "Ledger cash balance",
	})

	// OpenPositions tracks the number of instruments currently held.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stonks_open_positions",
		Help: "Number of open positions",
	})

	// WebSocketClients tracks connected dashboard WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stonks_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stonks_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stonks_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// fixed, so cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
