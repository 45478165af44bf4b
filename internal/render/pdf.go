package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/web3-frozen/market-snapshot/internal/market"
)

const defaultPDFTimeout = 60 * time.Second

// PDFReport prints the HTML report to PDF with headless Chrome.
type PDFReport struct {
	path     string
	currency string
	execPath string
	timeout  time.Duration
}

// NewPDFReport returns a PDF renderer. An empty execPath lets chromedp find
// the browser on PATH.
func NewPDFReport(path, currency, execPath string) *PDFReport {
	return &PDFReport{path: path, currency: currency, execPath: execPath, timeout: defaultPDFTimeout}
}

func (p *PDFReport) Name() string { return "pdf_report" }

func (p *PDFReport) Render(ctx context.Context, _ []market.Record, a *market.Analysis) error {
	doc, err := BuildHTML(a, p.currency)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "market-report-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "report.html")
	if err := os.WriteFile(src, doc, 0o600); err != nil {
		return fmt.Errorf("write html: %w", err)
	}

	pdf, err := p.print(ctx, "file://"+filepath.ToSlash(src), filepath.Join(dir, "profile"))
	if err != nil {
		return err
	}
	return writeFileAtomic(p.path, pdf)
}

func (p *PDFReport) print(ctx context.Context, url, profileDir string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.UserDataDir(profileDir),
	)
	if p.execPath != "" {
		opts = append(opts, chromedp.ExecPath(p.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	bctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	bctx, cancel = context.WithTimeout(bctx, p.timeout)
	defer cancel()

	var pdf []byte
	if err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("chromedp print: %w", err)
	}
	return pdf, nil
}
