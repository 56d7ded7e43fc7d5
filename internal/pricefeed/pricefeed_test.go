package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStaticFeed_PerInstrumentErrors(t *testing.T) {
	f := NewStaticFeed()
	f.Set("RELIANCE.NS", decimal.NewFromInt(2850))

	results := f.Prices(context.Background(), []string{"RELIANCE.NS", "TCS.NS"})

	if r := results["RELIANCE.NS"]; r.Err != nil || !r.Price.Equal(decimal.NewFromInt(2850)) {
		t.Errorf("unexpected result for known instrument: %+v", r)
	}
	if r := results["TCS.NS"]; !errors.Is(r.Err, ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable for unknown instrument, got %v", r.Err)
	}
}

func TestHTTPFeed_FailureIsolatedPerInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "GOOD.NS":
			w.Write([]byte(`{"symbol":"GOOD.NS","price":"123.45"}`))
		case "BADPRICE.NS":
			w.Write([]byte(`{"symbol":"BADPRICE.NS","price":"not-a-number"}`))
		default:
			http.Error(w, "unknown symbol", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, 2*time.Second)
	results := f.Prices(context.Background(), []string{"GOOD.NS", "BADPRICE.NS", "MISSING.NS"})

	if r := results["GOOD.NS"]; r.Err != nil || !r.Price.Equal(decimal.NewFromFloat(123.45)) {
		t.Errorf("unexpected result for good instrument: %+v", r)
	}
	for _, inst := range []string{"BADPRICE.NS", "MISSING.NS"} {
		if r := results[inst]; !errors.Is(r.Err, ErrPriceUnavailable) {
			t.Errorf("%s: expected ErrPriceUnavailable, got %v", inst, r.Err)
		}
	}
}

func TestHTTPFeed_RejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"symbol":"X","price":"0"}`))
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, 2*time.Second)
	results := f.Prices(context.Background(), []string{"X"})
	if r := results["X"]; !errors.Is(r.Err, ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable for zero price, got %v", r.Err)
	}
}
