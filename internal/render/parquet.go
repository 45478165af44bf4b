package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/web3-frozen/market-snapshot/internal/market"
)

// ParquetRow is one asset of the live table in the Parquet export.
type ParquetRow struct {
	Rank         int32   `parquet:"rank"`
	Name         string  `parquet:"name"`
	Symbol       string  `parquet:"symbol"`
	Price        float64 `parquet:"price"`
	MarketCap    float64 `parquet:"market_cap"`
	Volume24h    float64 `parquet:"volume_24h"`
	Change24hPct float64 `parquet:"change_24h_pct"`
	GeneratedAt  string  `parquet:"generated_at"`
}

// Parquet writes the latest record set as a Parquet file, replacing the
// previous one.
type Parquet struct {
	path string
}

func NewParquet(path string) *Parquet {
	return &Parquet{path: path}
}

func (p *Parquet) Name() string { return "parquet" }

func (p *Parquet) Render(_ context.Context, records []market.Record, a *market.Analysis) error {
	rows := ParquetRows(records, a)
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return fmt.Errorf("encode parquet: %w", err)
	}
	return writeFileAtomic(p.path, buf.Bytes())
}

// ParquetRows converts records in fetch order.
func ParquetRows(records []market.Record, a *market.Analysis) []ParquetRow {
	ts := a.Timestamp()
	rows := make([]ParquetRow, len(records))
	for i, r := range records {
		rows[i] = ParquetRow{
			Rank:         int32(i + 1),
			Name:         r.Name,
			Symbol:       r.Symbol,
			Price:        r.Price.InexactFloat64(),
			MarketCap:    r.MarketCap.InexactFloat64(),
			Volume24h:    r.Volume24h.InexactFloat64(),
			Change24hPct: r.Change24hPct.InexactFloat64(),
			GeneratedAt:  ts,
		}
	}
	return rows
}
