package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPFeed fetches quotes from a REST endpoint, one request per
// instrument: GET {baseURL}?symbol={instrument}, expecting a JSON body
// with a decimal price string. Request failures, bad statuses, and
// unparsable prices all degrade to a per-instrument error.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFeed creates a feed against the given quote endpoint.
func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// quoteResponse is the quote endpoint's JSON body.
type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (f *HTTPFeed) Prices(ctx context.Context, instruments []string) map[string]Result {
	out := make(map[string]Result, len(instruments))
	for _, inst := range instruments {
		price, err := f.fetchOne(ctx, inst)
		if err != nil {
			out[inst] = Result{Err: fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, inst, err)}
			continue
		}
		out[inst] = Result{Price: price}
	}
	return out
}

func (f *HTTPFeed) fetchOne(ctx context.Context, instrument string) (decimal.Decimal, error) {
	u := f.baseURL + "?symbol=" + url.QueryEscape(instrument)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("status %d", resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad price %q: %v", quote.Price, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}
