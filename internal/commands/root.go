package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/web3-frozen/market-snapshot/internal/config"
	"github.com/web3-frozen/market-snapshot/internal/render"
)

var verbose bool

// newRootCmd builds the command tree. The root command runs the tracker loop.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Live cryptocurrency market snapshot tracker",
		Long: `Polls the CoinGecko markets endpoint for the top assets by market cap,
analyzes the set and refreshes a workbook and a text report every cycle.

Optional sinks are enabled through configuration: Parquet export, a Redis
snapshot key, Postgres tables, HTML/PDF reports and a read-only HTTP API.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTracker,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newOnceCmd(), newReportCmd())
	return root
}

// Execute runs the CLI.
func Execute() error {
	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runTracker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WorkbookMode == config.WorkbookInPlace {
		created, err := render.CreateWorkbookTemplate(cfg.WorkbookPath, cfg.Currency)
		if err != nil {
			return fmt.Errorf("workbook template: %w", err)
		}
		if created {
			fmt.Fprintf(out, "Created Excel template at %s\n", cfg.WorkbookPath)
		}
	}

	a, err := build(ctx, cfg, logger, out, loopRenderers)
	if err != nil {
		return err
	}
	defer a.Close()

	printBanner(out, cfg, a.engine.Interval())

	var srv *http.Server
	if cfg.Port != "" {
		srv = &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      newRouter(a, cfg, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("server starting", "port", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
				stop()
			}
		}()
	}

	runErr := a.engine.Run(ctx)
	if runErr != nil {
		logger.Error("tracker stopped on unexpected fault", "error", runErr)
		fmt.Fprintf(out, "\nAn error occurred: %v\n", runErr)
	} else {
		fmt.Fprintln(out, "\nProgram terminated by user.")
	}

	if srv != nil {
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	fmt.Fprintln(out, "\nCryptocurrency Live Tracker Stopped")
	return runErr
}

func printBanner(out io.Writer, cfg config.Config, interval time.Duration) {
	fmt.Fprintln(out, "Cryptocurrency Live Tracker Started")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintf(out, "Fetching and analyzing top %d cryptocurrencies...\n", cfg.Limit)
	fmt.Fprintf(out, "Refreshing every %s.\n", interval)
	fmt.Fprintln(out, "Press Ctrl+C to stop the program.")
}
