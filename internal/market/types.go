package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawAsset is one entry of the /coins/markets listing as decoded from JSON.
// Every field is nullable so that a missing key and an explicit null are
// both visible to Normalize.
type RawAsset struct {
	ID                       string              `json:"id"`
	Name                     *string             `json:"name"`
	Symbol                   *string             `json:"symbol"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

// Record is a normalized asset row.
type Record struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
	Change24hPct decimal.Decimal `json:"change_24h_pct"`
}

// Analysis is the per-cycle aggregate over a record set. It is built once by
// Analyzer.Analyze and never modified afterwards.
type Analysis struct {
	TopByMarketCap []Record `json:"top_by_market_cap"`
	TopByVolume    []Record `json:"top_by_volume"`
	TopGainers     []Record `json:"top_gainers"`
	TopLosers      []Record `json:"top_losers"`

	TotalMarketCap decimal.Decimal `json:"total_market_cap"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	MedianPrice    decimal.Decimal `json:"median_price"`

	HighestChange Record `json:"highest_change"`
	LowestChange  Record `json:"lowest_change"`

	DominanceAsset string          `json:"dominance_asset"`
	Dominance      decimal.Decimal `json:"dominance"`

	Count       int       `json:"count"`
	TopK        int       `json:"top_k"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TimestampLayout is how GeneratedAt appears in every artifact.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp returns GeneratedAt formatted for reports.
func (a *Analysis) Timestamp() string {
	return a.GeneratedAt.Format(TimestampLayout)
}

// OthersMarketCap is the market cap outside TopByMarketCap.
func (a *Analysis) OthersMarketCap() decimal.Decimal {
	top := decimal.Zero
	for _, r := range a.TopByMarketCap {
		top = top.Add(r.MarketCap)
	}
	return a.TotalMarketCap.Sub(top)
}
