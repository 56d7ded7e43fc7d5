// Package config reads and validates the engine configuration from the
// environment. Validation runs once at startup, before any trading cycle;
// any violation is fatal.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig wraps every configuration failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// instrumentRegex matches exchange-style symbols such as RELIANCE.NS,
// BAJAJ-AUTO.NS, or plain AAPL.
var instrumentRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&-]*(\.[A-Z]+)?$`)

// Window is the daily trading window. Open and Close are minutes-of-day
// in the configured timezone; a tick outside [Open, Close] is a no-op.
type Window struct {
	Open  int // minutes since midnight
	Close int
}

// Contains reports whether t (in the window's timezone) falls inside the
// trading window, inclusive on both ends.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Open && m <= w.Close
}

// Config is the full recognized option surface.
type Config struct {
	InitialCash         decimal.Decimal
	FeeRate             decimal.Decimal
	Slippage            decimal.Decimal
	MaxPositionFraction decimal.Decimal
	StopLossPct         decimal.Decimal

	// Instruments is the universe in its fixed processing order.
	Instruments []string

	Strategy string

	// Strategy tuning.
	MAShort      int
	MALong       int
	MRPeriod     int
	MRThreshold  decimal.Decimal
	MRCloseBand  decimal.Decimal
	MomLookback  int
	MomTopN      int
	MomRebalance int

	CycleInterval time.Duration
	Window        Window
	Location      *time.Location

	HistoryWindow int
	OutputDir     string
	PriceURL      string

	DatabaseURL string
	RedisURL    string
	Port        string
}

// Load reads the environment, applies defaults, and validates.
func Load() (*Config, error) {
	cfg := &Config{
		Strategy:  envOr("STONKS_STRATEGY", "ma_crossover"),
		OutputDir: envOr("STONKS_OUTPUT_DIR", "output"),
		PriceURL:  os.Getenv("STONKS_PRICE_URL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Port:        envOr("PORT", "8080"),
	}

	var err error
	if cfg.InitialCash, err = envDecimal("STONKS_INITIAL_CASH", "100000"); err != nil {
		return nil, err
	}
	if cfg.FeeRate, err = envDecimal("STONKS_FEE_RATE", "0.001"); err != nil {
		return nil, err
	}
	if cfg.Slippage, err = envDecimal("STONKS_SLIPPAGE", "0.0005"); err != nil {
		return nil, err
	}
	if cfg.MaxPositionFraction, err = envDecimal("STONKS_MAX_POSITION_FRACTION", "0.1"); err != nil {
		return nil, err
	}
	if cfg.StopLossPct, err = envDecimal("STONKS_STOP_LOSS_PCT", "0.02"); err != nil {
		return nil, err
	}
	if cfg.MRThreshold, err = envDecimal("STONKS_MR_ZSCORE", "2"); err != nil {
		return nil, err
	}
	if cfg.MRCloseBand, err = envDecimal("STONKS_MR_CLOSE_BAND", "0.5"); err != nil {
		return nil, err
	}

	if cfg.MAShort, err = envInt("STONKS_MA_SHORT", 50); err != nil {
		return nil, err
	}
	if cfg.MALong, err = envInt("STONKS_MA_LONG", 200); err != nil {
		return nil, err
	}
	if cfg.MRPeriod, err = envInt("STONKS_MR_PERIOD", 20); err != nil {
		return nil, err
	}
	if cfg.MomLookback, err = envInt("STONKS_MOM_LOOKBACK", 10); err != nil {
		return nil, err
	}
	if cfg.MomTopN, err = envInt("STONKS_MOM_TOPN", 1); err != nil {
		return nil, err
	}
	if cfg.MomRebalance, err = envInt("STONKS_MOM_REBALANCE", 1); err != nil {
		return nil, err
	}
	if cfg.HistoryWindow, err = envInt("STONKS_HISTORY_WINDOW", 250); err != nil {
		return nil, err
	}

	interval := envOr("STONKS_CYCLE_INTERVAL", "5m")
	if cfg.CycleInterval, err = time.ParseDuration(interval); err != nil {
		return nil, fmt.Errorf("%w: STONKS_CYCLE_INTERVAL %q: %v", ErrInvalidConfig, interval, err)
	}

	tz := envOr("STONKS_TIMEZONE", "Asia/Kolkata")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: STONKS_TIMEZONE %q: %v", ErrInvalidConfig, tz, err)
	}

	open := envOr("STONKS_WINDOW_OPEN", "09:15")
	close := envOr("STONKS_WINDOW_CLOSE", "15:30")
	if cfg.Window, err = parseWindow(open, close); err != nil {
		return nil, err
	}

	cfg.Instruments = splitList(envOr("STONKS_INSTRUMENTS", "RELIANCE.NS"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("%w: initial cash must be positive, got %s", ErrInvalidConfig, c.InitialCash)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("%w: cycle interval must be positive", ErrInvalidConfig)
	}
	if c.HistoryWindow < 2 {
		return fmt.Errorf("%w: history window must be at least 2", ErrInvalidConfig)
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("%w: empty instrument universe", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if !instrumentRegex.MatchString(inst) {
			return fmt.Errorf("%w: bad instrument symbol %q", ErrInvalidConfig, inst)
		}
		if seen[inst] {
			return fmt.Errorf("%w: duplicate instrument %q", ErrInvalidConfig, inst)
		}
		seen[inst] = true
	}
	return nil
}

func parseWindow(open, close string) (Window, error) {
	openMin, err := parseClock(open)
	if err != nil {
		return Window{}, fmt.Errorf("%w: STONKS_WINDOW_OPEN %q: %v", ErrInvalidConfig, open, err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return Window{}, fmt.Errorf("%w: STONKS_WINDOW_CLOSE %q: %v", ErrInvalidConfig, close, err)
	}
	if openMin >= closeMin {
		return Window{}, fmt.Errorf("%w: trading window open %s not before close %s", ErrInvalidConfig, open, close)
	}
	return Window{Open: openMin, Close: closeMin}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDecimal(key, def string) (decimal.Decimal, error) {
	raw := envOr(key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, key, raw, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, key, raw, err)
	}
	return n, nil
}
