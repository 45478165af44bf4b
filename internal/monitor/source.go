package monitor

import (
	"context"
	"time"

	"github.com/web3-frozen/market-snapshot/internal/market"
)

// Fetcher retrieves the top-N market listing from an upstream API.
// Implementations return *market.FetchError on any failure and do not retry.
type Fetcher interface {
	// Name returns a unique identifier for the upstream (e.g., "coingecko").
	Name() string

	// FetchMarkets requests limit assets quoted in currency, ordered by
	// descending market cap.
	FetchMarkets(ctx context.Context, limit int, currency string) ([]market.RawAsset, error)
}

// Renderer turns one cycle's records and analysis into an artifact.
// Implementations must not modify either argument.
type Renderer interface {
	Name() string
	Render(ctx context.Context, records []market.Record, analysis *market.Analysis) error
}

// Snapshot is the result of the latest successful cycle.
type Snapshot struct {
	Cycle     int              `json:"cycle"`
	Source    string           `json:"source"`
	Currency  string           `json:"currency"`
	Records   []market.Record  `json:"records"`
	Analysis  *market.Analysis `json:"analysis"`
	FetchedAt time.Time        `json:"fetched_at"`
}
