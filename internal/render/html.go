package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"

	"github.com/web3-frozen/market-snapshot/internal/market"
)

// HTMLReport writes a self-contained HTML report with the charts inlined
// as PNG data URIs.
type HTMLReport struct {
	path     string
	currency string
}

func NewHTMLReport(path, currency string) *HTMLReport {
	return &HTMLReport{path: path, currency: currency}
}

func (h *HTMLReport) Name() string { return "html_report" }

func (h *HTMLReport) Render(_ context.Context, _ []market.Record, a *market.Analysis) error {
	page, err := BuildHTML(a, h.currency)
	if err != nil {
		return err
	}
	return writeFileAtomic(h.path, page)
}

type htmlRow struct {
	Rank      int
	Name      string
	Symbol    string
	MarketCap string
	Price     string
	Volume    string
	Change    string
	Negative  bool
}

type htmlMetric struct {
	Label, Value string
}

type htmlPage struct {
	GeneratedAt string
	Currency    string
	TopK        int
	Overview    []htmlMetric
	PieChart    template.URL
	BarChart    template.URL
	TopByCap    []htmlRow
	TopByVolume []htmlRow
	Gainers     []htmlRow
	Losers      []htmlRow
}

// BuildHTML renders the report page. A chart whose values are all zero is
// left out; any other chart failure is returned.
func BuildHTML(a *market.Analysis, currency string) ([]byte, error) {
	p := htmlPage{
		GeneratedAt: a.Timestamp(),
		Currency:    CurrencyCode(currency),
		TopK:        a.TopK,
		Overview: []htmlMetric{
			{fmt.Sprintf("Total Market Cap of Top %d", a.Count), Money(a.TotalMarketCap, currency)},
			{"Total 24h Trading Volume", Money(a.TotalVolume, currency)},
			{fmt.Sprintf("Average Price of Top %d", a.Count), Money(a.AveragePrice, currency)},
			{fmt.Sprintf("Median Price of Top %d", a.Count), Money(a.MedianPrice, currency)},
		},
		TopByCap:    htmlRows(a.TopByMarketCap, currency),
		TopByVolume: htmlRows(a.TopByVolume, currency),
		Gainers:     htmlRows(a.TopGainers, currency),
		Losers:      htmlRows(a.TopLosers, currency),
	}
	if a.DominanceAsset != "" {
		p.Overview = append(p.Overview, htmlMetric{a.DominanceAsset + " Dominance", Percent(a.Dominance)})
	}

	var err error
	if p.PieChart, err = chartURI(MarketCapPie(a, currency)); err != nil {
		return nil, err
	}
	if p.BarChart, err = chartURI(ChangeBars(a)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}
	return buf.Bytes(), nil
}

func chartURI(png []byte, err error) (template.URL, error) {
	if errors.Is(err, errNoChartData) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

func htmlRows(recs []market.Record, currency string) []htmlRow {
	rows := make([]htmlRow, len(recs))
	for i, r := range recs {
		rows[i] = htmlRow{
			Rank:      i + 1,
			Name:      r.Name,
			Symbol:    r.Symbol,
			MarketCap: Money(r.MarketCap, currency),
			Price:     Price(r.Price, currency),
			Volume:    Money(r.Volume24h, currency),
			Change:    SignedPercent(r.Change24hPct),
			Negative:  r.Change24hPct.IsNegative(),
		}
	}
	return rows
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cryptocurrency Market Analysis Report</title>
<style>
body { font-family: 'Calibri', Arial, sans-serif; margin: 20px; }
h1, h2, h3 { color: #2F5597; }
table { border-collapse: collapse; width: 100%; margin-top: 10px; margin-bottom: 20px; }
th, td { border: 1px solid #DDDDDD; text-align: left; padding: 8px; }
th { background-color: #2F5597; color: white; }
tr:nth-child(even) { background-color: #F2F2F2; }
.container { margin-bottom: 30px; }
.chart { text-align: center; margin: 20px 0; }
.chart img { max-width: 100%; }
.positive { color: green; }
.negative { color: red; }
.timestamp { font-style: italic; color: #666666; text-align: right; }
</style>
</head>
<body>
<h1>Cryptocurrency Market Analysis Report</h1>
<p class="timestamp">Generated on: {{.GeneratedAt}}</p>

<div class="container">
<h2>Market Overview</h2>
<table>
<tr><th>Metric</th><th>Value</th></tr>
{{- range .Overview}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
</div>

{{if .PieChart -}}
<div class="chart">
<h2>Market Cap Distribution</h2>
<img src="{{.PieChart}}" alt="Market Cap Distribution">
</div>
{{- end}}

<div class="container">
<h2>Top {{.TopK}} Cryptocurrencies by Market Cap</h2>
<table>
<tr><th>Rank</th><th>Name</th><th>Symbol</th><th>Market Cap ({{.Currency}})</th><th>Current Price ({{.Currency}})</th></tr>
{{- range .TopByCap}}
<tr><td>{{.Rank}}</td><td>{{.Name}}</td><td>{{.Symbol}}</td><td>{{.MarketCap}}</td><td>{{.Price}}</td></tr>
{{- end}}
</table>
</div>

{{if .BarChart -}}
<div class="chart">
<h2>24-Hour Price Change: Top Gainers and Losers</h2>
<img src="{{.BarChart}}" alt="Price Change Chart">
</div>
{{- end}}

<div class="container">
<h2>Top {{.TopK}} Gainers (24h)</h2>
<table>
<tr><th>Rank</th><th>Name</th><th>Symbol</th><th>24h Price Change (%)</th></tr>
{{- range .Gainers}}
<tr><td>{{.Rank}}</td><td>{{.Name}}</td><td>{{.Symbol}}</td><td class="{{if .Negative}}negative{{else}}positive{{end}}">{{.Change}}</td></tr>
{{- end}}
</table>
</div>

<div class="container">
<h2>Top {{.TopK}} Losers (24h)</h2>
<table>
<tr><th>Rank</th><th>Name</th><th>Symbol</th><th>24h Price Change (%)</th></tr>
{{- range .Losers}}
<tr><td>{{.Rank}}</td><td>{{.Name}}</td><td>{{.Symbol}}</td><td class="{{if .Negative}}negative{{else}}positive{{end}}">{{.Change}}</td></tr>
{{- end}}
</table>
</div>

<div class="container">
<h2>Top {{.TopK}} by 24h Trading Volume</h2>
<table>
<tr><th>Rank</th><th>Name</th><th>Symbol</th><th>24h Trading Volume ({{.Currency}})</th></tr>
{{- range .TopByVolume}}
<tr><td>{{.Rank}}</td><td>{{.Name}}</td><td>{{.Symbol}}</td><td>{{.Volume}}</td></tr>
{{- end}}
</table>
</div>

<div class="container">
<h2>Conclusion</h2>
<p>This report is a snapshot of the cryptocurrency market: key metrics, trends and notable
performers. Data comes from the CoinGecko API and reflects the market as of the timestamp above.</p>
<p>For live figures see the workbook that accompanies this report; it is refreshed on every
tracker cycle.</p>
</div>

<p class="timestamp">Note: generated automatically by the market snapshot tracker. Prices are
volatile; treat this as a point-in-time analysis.</p>
</body>
</html>
`))
