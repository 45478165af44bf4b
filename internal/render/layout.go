package render

import (
	"fmt"

	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/xuri/excelize/v2"
)

// Sheet names and fixed row offsets shared by both workbook renderers.
const (
	DataSheet     = "Live Crypto Data"
	AnalysisSheet = "Analysis"

	summaryRow = 3
	topRow     = 11
)

// extremaRow is where the change-extremes block starts: below the top-K
// title, header, K rows and one blank row.
func extremaRow(k int) int { return topRow + k + 3 }

type workbookStyles struct {
	title, section, header, money, price, pct int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	var s workbookStyles
	pricefmt := "#,##0.00######"
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&s.section, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.header, &excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"2F5597"}, Pattern: 1},
		}},
		{&s.money, &excelize.Style{NumFmt: 4}},
		{&s.price, &excelize.Style{CustomNumFmt: &pricefmt}},
		{&s.pct, &excelize.Style{NumFmt: 2}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("new style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

// sheetWriter keeps the first error so layout code reads top to bottom.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(w.sheet, w.cell(col, row), v)
}

func (w *sheetWriter) row(row int, vals ...any) {
	for i, v := range vals {
		w.set(i+1, row, v)
	}
}

func (w *sheetWriter) style(fromCol, fromRow, toCol, toRow, style int) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, w.cell(fromCol, fromRow), w.cell(toCol, toRow), style)
}

// title writes text in column A and merges it across lastCol.
func (w *sheetWriter) title(row, lastCol int, text string, style int) {
	w.set(1, row, text)
	if w.err != nil {
		return
	}
	w.err = w.f.MergeCell(w.sheet, w.cell(1, row), w.cell(lastCol, row))
	w.style(1, row, lastCol, row, style)
}

func (w *sheetWriter) width(fromCol, toCol string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(w.sheet, fromCol, toCol, width)
}

// newWorkbookFile returns an in-memory workbook with both sheets present.
func newWorkbookFile() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if _, err := f.NewSheet(AnalysisSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("add analysis sheet: %w", err)
	}
	return f, nil
}

func ensureSheet(f *excelize.File, name string) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	_, err = f.NewSheet(name)
	return err
}

// writeWorkbook lays out both sheets. The only time value written is the
// analysis timestamp.
func writeWorkbook(f *excelize.File, records []market.Record, a *market.Analysis, currency string) error {
	for _, name := range []string{DataSheet, AnalysisSheet} {
		if err := ensureSheet(f, name); err != nil {
			return fmt.Errorf("ensure sheet %q: %w", name, err)
		}
	}
	st, err := newWorkbookStyles(f)
	if err != nil {
		return err
	}
	if err := writeDataSheet(f, records, a, currency, st); err != nil {
		return fmt.Errorf("sheet %q: %w", DataSheet, err)
	}
	if err := writeAnalysisSheet(f, a, currency, st); err != nil {
		return fmt.Errorf("sheet %q: %w", AnalysisSheet, err)
	}
	return nil
}

func dataHeader(currency string) []any {
	cc := CurrencyCode(currency)
	return []any{
		"Name",
		"Symbol",
		"Current Price (" + cc + ")",
		"Market Cap (" + cc + ")",
		"24h Trading Volume (" + cc + ")",
		"24h Price Change (%)",
	}
}

func writeDataSheet(f *excelize.File, records []market.Record, a *market.Analysis, currency string, st workbookStyles) error {
	w := &sheetWriter{f: f, sheet: DataSheet}
	header := dataHeader(currency)
	w.row(1, header...)
	w.style(1, 1, len(header), 1, st.header)

	for i, r := range records {
		w.row(i+2,
			r.Name,
			r.Symbol,
			r.Price.InexactFloat64(),
			r.MarketCap.InexactFloat64(),
			r.Volume24h.InexactFloat64(),
			r.Change24hPct.InexactFloat64(),
		)
	}
	if n := len(records); n > 0 {
		w.style(3, 2, 3, n+1, st.price)
		w.style(4, 2, 5, n+1, st.money)
		w.style(6, 2, 6, n+1, st.pct)
	}

	w.set(8, 1, "Last Updated:")
	w.set(9, 1, a.Timestamp())
	w.style(8, 1, 8, 1, st.section)
	w.width("A", "F", 20)
	w.width("H", "I", 20)
	return w.err
}

func writeAnalysisSheet(f *excelize.File, a *market.Analysis, currency string, st workbookStyles) error {
	cc := CurrencyCode(currency)
	w := &sheetWriter{f: f, sheet: AnalysisSheet}

	w.title(1, 4, "Cryptocurrency Market Analysis", st.title)

	w.title(summaryRow, 2, "Summary Metrics", st.section)
	domLabel := "Dominance (%)"
	if a.DominanceAsset != "" {
		domLabel = a.DominanceAsset + " Dominance (%)"
	}
	summary := []struct {
		label string
		value any
		style int
	}{
		{"Average Price (" + cc + ")", a.AveragePrice.InexactFloat64(), st.price},
		{"Median Price (" + cc + ")", a.MedianPrice.InexactFloat64(), st.price},
		{"Total Market Cap (" + cc + ")", a.TotalMarketCap.InexactFloat64(), st.money},
		{"Total 24h Trading Volume (" + cc + ")", a.TotalVolume.InexactFloat64(), st.money},
		{domLabel, a.Dominance.Round(4).InexactFloat64(), st.pct},
		{"Last Updated", a.Timestamp(), 0},
	}
	for i, m := range summary {
		row := summaryRow + 1 + i
		w.row(row, m.label, m.value)
		if m.style != 0 {
			w.style(2, row, 2, row, m.style)
		}
	}

	w.title(topRow, 4, fmt.Sprintf("Top %d Cryptocurrencies by Market Cap", a.TopK), st.section)
	w.row(topRow+1, "Rank", "Name", "Symbol", "Market Cap ("+cc+")")
	w.style(1, topRow+1, 4, topRow+1, st.header)
	for i, r := range a.TopByMarketCap {
		row := topRow + 2 + i
		w.row(row, i+1, r.Name, r.Symbol, r.MarketCap.InexactFloat64())
		w.style(4, row, 4, row, st.money)
	}

	er := extremaRow(a.TopK)
	w.title(er, 4, "24-Hour Price Change Extremes", st.section)
	w.row(er+1, "Type", "Name", "Symbol", "Price Change (%)")
	w.style(1, er+1, 4, er+1, st.header)
	w.row(er+2, "Highest", a.HighestChange.Name, a.HighestChange.Symbol, a.HighestChange.Change24hPct.InexactFloat64())
	w.row(er+3, "Lowest", a.LowestChange.Name, a.LowestChange.Symbol, a.LowestChange.Change24hPct.InexactFloat64())
	w.style(4, er+2, 4, er+3, st.pct)

	w.width("A", "A", 32)
	w.width("B", "D", 20)
	return w.err
}

// clearSheet unmerges every range and removes every row of sheet, leaving
// column widths and the sheet itself in place.
func clearSheet(f *excelize.File, sheet string) error {
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return fmt.Errorf("merged cells: %w", err)
	}
	for _, mc := range merged {
		if err := f.UnmergeCell(sheet, mc.GetStartAxis(), mc.GetEndAxis()); err != nil {
			return fmt.Errorf("unmerge %s:%s: %w", mc.GetStartAxis(), mc.GetEndAxis(), err)
		}
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	for i := len(rows); i >= 1; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return fmt.Errorf("remove row %d: %w", i, err)
		}
	}
	return nil
}
