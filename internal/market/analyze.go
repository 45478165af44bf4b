package market

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTopK           = 5
	DefaultDominanceAsset = "Bitcoin"
)

var hundred = decimal.NewFromInt(100)

// Analyzer computes an Analysis from a record set.
type Analyzer struct {
	TopK           int
	DominanceAsset string
	Now            func() time.Time
}

// NewAnalyzer returns an Analyzer with the default K and dominance asset.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		TopK:           DefaultTopK,
		DominanceAsset: DefaultDominanceAsset,
		Now:            time.Now,
	}
}

// Analyze aggregates records. Top-K slices are stable-sorted copies, so
// equal keys keep fetch order. It returns ErrEmptyInput for an empty set.
func (an *Analyzer) Analyze(records []Record) (*Analysis, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	now := time.Now
	if an.Now != nil {
		now = an.Now
	}
	k := an.TopK
	if k <= 0 {
		k = DefaultTopK
	}

	a := &Analysis{
		TopByMarketCap: topK(records, k, func(r Record) decimal.Decimal { return r.MarketCap }, true),
		TopByVolume:    topK(records, k, func(r Record) decimal.Decimal { return r.Volume24h }, true),
		TopGainers:     topK(records, k, func(r Record) decimal.Decimal { return r.Change24hPct }, true),
		TopLosers:      topK(records, k, func(r Record) decimal.Decimal { return r.Change24hPct }, false),
		DominanceAsset: an.DominanceAsset,
		Count:          len(records),
		TopK:           k,
		GeneratedAt:    now().Truncate(time.Second),
	}

	prices := make([]decimal.Decimal, len(records))
	for i, r := range records {
		a.TotalMarketCap = a.TotalMarketCap.Add(r.MarketCap)
		a.TotalVolume = a.TotalVolume.Add(r.Volume24h)
		prices[i] = r.Price
	}
	a.AveragePrice = decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices))))
	a.MedianPrice = median(prices)

	a.HighestChange, a.LowestChange = records[0], records[0]
	for _, r := range records[1:] {
		if r.Change24hPct.GreaterThan(a.HighestChange.Change24hPct) {
			a.HighestChange = r
		}
		if r.Change24hPct.LessThan(a.LowestChange.Change24hPct) {
			a.LowestChange = r
		}
	}

	a.Dominance = dominance(records, an.DominanceAsset, a.TotalMarketCap)
	return a, nil
}

func topK(records []Record, k int, key func(Record) decimal.Decimal, desc bool) []Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(x, y Record) int {
		if desc {
			return key(y).Cmp(key(x))
		}
		return key(x).Cmp(key(y))
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return slices.Clip(sorted)
}

// median sorts vals in place.
func median(vals []decimal.Decimal) decimal.Decimal {
	slices.SortFunc(vals, decimal.Decimal.Cmp)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return vals[n/2-1].Add(vals[n/2]).Div(decimal.NewFromInt(2))
}

func dominance(records []Record, name string, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	for _, r := range records {
		if r.Name == name {
			return r.MarketCap.Div(total).Mul(hundred)
		}
	}
	return decimal.Zero
}
