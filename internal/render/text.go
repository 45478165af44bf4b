package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/web3-frozen/market-snapshot/internal/market"
)

// TextReport writes the plain-text analysis report.
type TextReport struct {
	path     string
	currency string
}

func NewTextReport(path, currency string) *TextReport {
	return &TextReport{path: path, currency: currency}
}

func (t *TextReport) Name() string { return "text_report" }

func (t *TextReport) Render(_ context.Context, _ []market.Record, a *market.Analysis) error {
	return writeFileAtomic(t.path, []byte(BuildTextReport(a, t.currency)))
}

// BuildTextReport formats the report body.
func BuildTextReport(a *market.Analysis, currency string) string {
	var b strings.Builder
	section := func(title string) {
		b.WriteString(title + "\n")
		b.WriteString(strings.Repeat("-", len(title)) + "\n")
	}

	b.WriteString("CRYPTOCURRENCY MARKET ANALYSIS REPORT\n")
	b.WriteString("=====================================\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", a.Timestamp())

	section("MARKET OVERVIEW")
	fmt.Fprintf(&b, "Total Market Cap of Top %d: %s\n", a.Count, Money(a.TotalMarketCap, currency))
	fmt.Fprintf(&b, "Total 24h Trading Volume: %s\n", Money(a.TotalVolume, currency))
	fmt.Fprintf(&b, "Average Price of Top %d: %s\n", a.Count, Money(a.AveragePrice, currency))
	fmt.Fprintf(&b, "Median Price of Top %d: %s\n", a.Count, Money(a.MedianPrice, currency))
	if a.DominanceAsset != "" {
		fmt.Fprintf(&b, "%s Dominance: %s\n", a.DominanceAsset, Percent(a.Dominance))
	}
	b.WriteString("\n")

	section(fmt.Sprintf("TOP %d CRYPTOCURRENCIES BY MARKET CAP", a.TopK))
	for i, r := range a.TopByMarketCap {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, r.Name, r.Symbol, Money(r.MarketCap, currency))
	}
	b.WriteString("\n")

	section("24-HOUR PRICE CHANGE EXTREMES")
	fmt.Fprintf(&b, "Highest: %s (%s): %s\n", a.HighestChange.Name, a.HighestChange.Symbol, Percent(a.HighestChange.Change24hPct))
	fmt.Fprintf(&b, "Lowest: %s (%s): %s\n\n", a.LowestChange.Name, a.LowestChange.Symbol, Percent(a.LowestChange.Change24hPct))

	b.WriteString("NOTE: For more detailed information and live updates, please refer to the Excel file.\n")
	return b.String()
}
