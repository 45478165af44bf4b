package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/xuri/excelize/v2"
)

// Workbook rewrites the whole .xlsx file every cycle.
type Workbook struct {
	path     string
	currency string
}

func NewWorkbook(path, currency string) *Workbook {
	return &Workbook{path: path, currency: currency}
}

func (w *Workbook) Name() string { return "workbook" }

func (w *Workbook) Render(_ context.Context, records []market.Record, a *market.Analysis) error {
	f, err := newWorkbookFile()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeWorkbook(f, records, a, w.currency); err != nil {
		return err
	}
	return saveWorkbook(f, w.path)
}

// LiveWorkbook updates an existing workbook in place: it opens the file,
// clears and rewrites only the two managed sheets, and saves it back.
// Other sheets in the file are preserved. The handle is owned by a single
// Render call and always closed before it returns.
type LiveWorkbook struct {
	path     string
	currency string
}

func NewLiveWorkbook(path, currency string) *LiveWorkbook {
	return &LiveWorkbook{path: path, currency: currency}
}

func (w *LiveWorkbook) Name() string { return "live_workbook" }

func (w *LiveWorkbook) Render(_ context.Context, records []market.Record, a *market.Analysis) error {
	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	for _, sheet := range []string{DataSheet, AnalysisSheet} {
		if err := ensureSheet(f, sheet); err != nil {
			return fmt.Errorf("ensure sheet %q: %w", sheet, err)
		}
		if err := clearSheet(f, sheet); err != nil {
			return fmt.Errorf("clear sheet %q: %w", sheet, err)
		}
	}
	if err := writeWorkbook(f, records, a, w.currency); err != nil {
		return err
	}
	return saveWorkbook(f, w.path)
}

// open loads the workbook, or starts from the empty template when the
// file does not exist yet.
func (w *LiveWorkbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newWorkbookFile()
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

func saveWorkbook(f *excelize.File, path string) error {
	if idx, err := f.GetSheetIndex(DataSheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize workbook: %w", err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// CreateWorkbookTemplate writes an empty workbook with both sheets and the
// data header when path does not exist yet.
func CreateWorkbookTemplate(path, currency string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	f, err := newWorkbookFile()
	if err != nil {
		return false, err
	}
	defer f.Close()

	w := &sheetWriter{f: f, sheet: DataSheet}
	w.row(1, dataHeader(currency)...)
	a := &sheetWriter{f: f, sheet: AnalysisSheet}
	a.row(1, "Metric", "Value")
	if err := errors.Join(w.err, a.err); err != nil {
		return false, err
	}
	if err := saveWorkbook(f, path); err != nil {
		return false, err
	}
	return true, nil
}
