package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate the HTML report (and PDF when PDF_REPORT_PATH is set)",
		Long: `Fetches one snapshot and writes a self-contained HTML report with a market
cap distribution chart and a gainers/losers chart. When PDF_REPORT_PATH is set
the same page is printed to PDF with headless Chrome (CHROME_PATH overrides
the browser binary).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg, logger, cmd.OutOrStdout(), reportRenderers)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := runSingle(cmd, a); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "HTML report generated at %s\n", cfg.HTMLReportPath)
			if cfg.PDFReportPath != "" {
				fmt.Fprintf(out, "PDF report generated at %s\n", cfg.PDFReportPath)
			}
			return nil
		},
	}
}
