package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/web3-frozen/market-snapshot/internal/market"
	"golang.org/x/time/rate"
)

const (
	coinGeckoAPI = "https://api.coingecko.com/api/v3"

	// MaxPageSize is the largest per_page the markets endpoint accepts.
	MaxPageSize = 250
)

// CoinGecko fetches the market listing from the CoinGecko public API.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewCoinGecko builds a client. minGap spaces consecutive calls; zero
// disables pacing.
func NewCoinGecko(baseURL string, timeout, minGap time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoAPI
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if minGap > 0 {
		limiter = rate.NewLimiter(rate.Every(minGap), 1)
	}
	return &CoinGecko{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: limiter,
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// FetchMarkets requests the first page of /coins/markets ordered by market
// cap. Every failure is returned as *market.FetchError.
func (c *CoinGecko) FetchMarkets(ctx context.Context, limit int, currency string) ([]market.RawAsset, error) {
	if limit < 1 || limit > MaxPageSize {
		return nil, c.fail(0, fmt.Errorf("limit %d out of range 1..%d", limit, MaxPageSize))
	}
	if currency == "" {
		return nil, c.fail(0, fmt.Errorf("quote currency is required"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(0, fmt.Errorf("rate limiter: %w", err))
	}

	q := url.Values{}
	q.Set("vs_currency", currency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("coingecko API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", string(body)))
	}

	var assets []market.RawAsset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, c.fail(resp.StatusCode, fmt.Errorf("decode coin markets: %w", err))
	}
	if len(assets) > limit {
		assets = assets[:limit]
	}
	return assets, nil
}

func (c *CoinGecko) fail(status int, err error) error {
	return &market.FetchError{Source: c.Name(), Status: status, Err: err}
}
