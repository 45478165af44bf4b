package render

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/web3-frozen/market-snapshot/internal/market"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// errNoChartData means every value would be zero; go-chart cannot scale that.
var errNoChartData = errors.New("chart: no non-zero values")

var (
	gainColor = drawing.ColorFromHex("2e7d32")
	lossColor = drawing.ColorFromHex("c62828")
)

// MarketCapPie renders the top-K market cap split plus an "Others" slice
// for the remainder of the set, as PNG.
func MarketCapPie(a *market.Analysis, currency string) ([]byte, error) {
	values := make([]chart.Value, 0, len(a.TopByMarketCap)+1)
	for _, r := range a.TopByMarketCap {
		if !r.MarketCap.IsPositive() {
			continue
		}
		values = append(values, chart.Value{
			Value: r.MarketCap.InexactFloat64(),
			Label: fmt.Sprintf("%s (%s)", r.Symbol, Billions(r.MarketCap, currency)),
		})
	}
	if others := a.OthersMarketCap(); others.IsPositive() {
		values = append(values, chart.Value{
			Value: others.InexactFloat64(),
			Label: fmt.Sprintf("Others (%s)", Billions(others, currency)),
		})
	}
	if len(values) == 0 {
		return nil, errNoChartData
	}

	pie := chart.PieChart{
		Title:  "Market Cap Distribution (in Billions " + CurrencyCode(currency) + ")",
		Width:  800,
		Height: 600,
		Values: values,
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// ChangeBars renders gainers then losers as bars from a zero baseline,
// green for non-negative changes and red for negative ones, as PNG.
func ChangeBars(a *market.Analysis) ([]byte, error) {
	var bars []chart.Value
	nonZero := false
	add := func(recs []market.Record) {
		for _, r := range recs {
			v := r.Change24hPct.InexactFloat64()
			color := gainColor
			if v < 0 {
				color = lossColor
			}
			if v != 0 {
				nonZero = true
			}
			bars = append(bars, chart.Value{
				Value: v,
				Label: r.Symbol,
				Style: chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1},
			})
		}
	}
	add(a.TopGainers)
	add(a.TopLosers)
	if !nonZero {
		return nil, errNoChartData
	}

	bc := chart.BarChart{
		Title:        fmt.Sprintf("Top %d Gainers and Losers (24h Price Change %%)", a.TopK),
		Background:   chart.Style{Padding: chart.Box{Top: 40}},
		Width:        1000,
		Height:       600,
		BarWidth:     50,
		BarSpacing:   30,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}
