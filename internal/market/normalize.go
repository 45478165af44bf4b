package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize maps raw assets to records in input order. Symbols are
// upper-cased and a missing 24h change becomes zero; any other missing
// field fails the whole batch with *MalformedRecordError.
func Normalize(raw []RawAsset) ([]Record, error) {
	out := make([]Record, 0, len(raw))
	for i, a := range raw {
		missing := func(field string) error {
			return &MalformedRecordError{Index: i, AssetID: a.ID, Field: field}
		}
		switch {
		case a.Name == nil:
			return nil, missing("name")
		case a.Symbol == nil:
			return nil, missing("symbol")
		case !a.CurrentPrice.Valid:
			return nil, missing("current_price")
		case !a.MarketCap.Valid:
			return nil, missing("market_cap")
		case !a.TotalVolume.Valid:
			return nil, missing("total_volume")
		}

		change := decimal.Zero
		if a.PriceChangePercentage24h.Valid {
			change = a.PriceChangePercentage24h.Decimal
		}

		out = append(out, Record{
			Name:         *a.Name,
			Symbol:       strings.ToUpper(*a.Symbol),
			Price:        a.CurrentPrice.Decimal,
			MarketCap:    a.MarketCap.Decimal,
			Volume24h:    a.TotalVolume.Decimal,
			Change24hPct: change,
		})
	}
	return out, nil
}
