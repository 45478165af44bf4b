package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/web3-frozen/market-snapshot/internal/metrics"
)

const (
	DefaultInterval = 300 * time.Second
	DefaultLimit    = 50
	DefaultCurrency = "usd"
)

// Outcome classifies a finished cycle.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeFetchFailed     Outcome = "fetch_failed"
	OutcomeMalformedRecord Outcome = "malformed_record"
	OutcomeEmptyInput      Outcome = "empty_input"
	OutcomeRenderFailed    Outcome = "render_failed"
	// OutcomeCancelled marks a cycle cut short by shutdown; it is not retried.
	OutcomeCancelled Outcome = "cancelled"
)

// CycleResult describes one cycle for status reporting and tests.
type CycleResult struct {
	Cycle     int
	ID        string
	StartedAt time.Time
	Outcome   Outcome
	Assets    int
	Err       error
}

// Options configures an Engine. Zero values fall back to the defaults.
type Options struct {
	Limit    int
	Currency string
	Interval time.Duration

	// Out receives one status line per cycle. Defaults to os.Stdout.
	Out io.Writer
}

// Engine runs the fetch, normalize, analyze and render pipeline one cycle at a time.
type Engine struct {
	fetcher   Fetcher
	analyzer  *market.Analyzer
	renderers []Renderer
	logger    *slog.Logger
	opts      Options

	// sleep and now are replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	cycle int

	mu   sync.RWMutex
	last *Snapshot
}

func NewEngine(f Fetcher, an *market.Analyzer, logger *slog.Logger, opts Options) *Engine {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if an == nil {
		an = market.NewAnalyzer()
	}
	return &Engine{
		fetcher:  f,
		analyzer: an,
		logger:   logger,
		opts:     opts,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Register adds a renderer. Renderers run in registration order.
func (e *Engine) Register(r Renderer) {
	e.renderers = append(e.renderers, r)
	e.logger.Info("registered renderer", "renderer", r.Name())
}

// RendererNames returns names of all registered renderers.
func (e *Engine) RendererNames() []string {
	names := make([]string, 0, len(e.renderers))
	for _, r := range e.renderers {
		names = append(names, r.Name())
	}
	return names
}

// Interval returns the wait between cycles.
func (e *Engine) Interval() time.Duration { return e.opts.Interval }

// GetSnapshot returns the latest successful snapshot, or nil before the first one.
func (e *Engine) GetSnapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run executes cycles until ctx is cancelled, waiting Interval after each
// cycle completes. Classified cycle failures are logged and the loop goes on;
// an unclassified fault stops the loop and is returned.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if _, err := e.RunOnce(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := e.sleep(ctx, e.opts.Interval); err != nil {
			return nil
		}
	}
}

// RunOnce executes a single cycle. The error return is reserved for faults
// outside the failure taxonomy (a panic in a collaborator); classified
// failures are reported through CycleResult.
func (e *Engine) RunOnce(ctx context.Context) (res CycleResult, err error) {
	e.cycle++
	res = CycleResult{
		Cycle:     e.cycle,
		ID:        uuid.NewString(),
		StartedAt: e.now(),
	}
	logger := e.logger.With("cycle", res.Cycle, "cycle_id", res.ID)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle %d: unexpected fault: %v", res.Cycle, p)
			logger.Error("cycle aborted", "error", err)
			fmt.Fprintf(e.opts.Out, "Update #%d - %s - aborted: %v\n", res.Cycle, res.StartedAt.Format(market.TimestampLayout), err)
		}
	}()

	e.cycleOnce(ctx, logger, &res)
	if res.Outcome != OutcomeOK && ctx.Err() != nil {
		logger.Info("cycle cancelled", "outcome", res.Outcome, "error", res.Err)
		res.Outcome = OutcomeCancelled
	}

	metrics.CyclesTotal.WithLabelValues(string(res.Outcome)).Inc()
	metrics.CycleDuration.Observe(time.Since(res.StartedAt).Seconds())
	e.printStatus(res)
	return res, nil
}

func (e *Engine) cycleOnce(ctx context.Context, logger *slog.Logger, res *CycleResult) {
	fetchStart := time.Now()
	raw, err := e.fetcher.FetchMarkets(ctx, e.opts.Limit, e.opts.Currency)
	metrics.FetchDuration.WithLabelValues(e.fetcher.Name()).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		res.Outcome, res.Err = OutcomeFetchFailed, err
		if ctx.Err() == nil {
			logger.Error("fetch markets failed", "source", e.fetcher.Name(), "error", err)
		}
		return
	}
	fetchedAt := e.now()

	records, err := market.Normalize(raw)
	if err != nil {
		res.Outcome, res.Err = OutcomeMalformedRecord, err
		logger.Error("normalize failed", "error", err)
		return
	}
	res.Assets = len(records)

	analysis, err := e.analyzer.Analyze(records)
	if err != nil {
		res.Outcome, res.Err = OutcomeEmptyInput, err
		logger.Warn("analyze skipped", "error", err)
		return
	}

	snap := &Snapshot{
		Cycle:     res.Cycle,
		Source:    e.fetcher.Name(),
		Currency:  e.opts.Currency,
		Records:   records,
		Analysis:  analysis,
		FetchedAt: fetchedAt,
	}
	e.mu.Lock()
	e.last = snap
	e.mu.Unlock()
	recordBusinessMetrics(analysis)

	logger.Info("analysis",
		"assets", analysis.Count,
		"total_market_cap", analysis.TotalMarketCap.StringFixed(2),
		"dominance", analysis.Dominance.StringFixed(2),
		"highest_change", analysis.HighestChange.Symbol,
		"lowest_change", analysis.LowestChange.Symbol,
	)

	if err := e.renderAll(ctx, logger, records, analysis); err != nil {
		res.Outcome, res.Err = OutcomeRenderFailed, err
		return
	}
	res.Outcome = OutcomeOK
	metrics.CycleLastSuccess.SetToCurrentTime()
}

// renderAll attempts every renderer and joins their failures.
func (e *Engine) renderAll(ctx context.Context, logger *slog.Logger, records []market.Record, a *market.Analysis) error {
	var errs []error
	for _, r := range e.renderers {
		start := time.Now()
		err := r.Render(ctx, records, a)
		metrics.RenderDuration.WithLabelValues(r.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.RenderTotal.WithLabelValues(r.Name(), "error").Inc()
			logger.Error("render failed", "renderer", r.Name(), "error", err)
			errs = append(errs, &market.RenderError{Renderer: r.Name(), Err: err})
			continue
		}
		metrics.RenderTotal.WithLabelValues(r.Name(), "ok").Inc()
		logger.Debug("rendered", "renderer", r.Name(), "duration", time.Since(start).String())
	}
	return errors.Join(errs...)
}

func (e *Engine) printStatus(res CycleResult) {
	ts := res.StartedAt.Format(market.TimestampLayout)
	switch res.Outcome {
	case OutcomeOK:
		fmt.Fprintf(e.opts.Out, "Update #%d - %s - ok (%d assets). Next update in %s.\n",
			res.Cycle, ts, res.Assets, humanInterval(e.opts.Interval))
		return
	case OutcomeCancelled:
		fmt.Fprintf(e.opts.Out, "Update #%d - %s - cancelled.\n", res.Cycle, ts)
		return
	}
	fmt.Fprintf(e.opts.Out, "Update #%d - %s - %s: %v. Will retry in the next cycle.\n",
		res.Cycle, ts, res.Outcome, res.Err)
}

func recordBusinessMetrics(a *market.Analysis) {
	metrics.AssetsTracked.Set(float64(a.Count))
	metrics.TotalMarketCap.Set(a.TotalMarketCap.InexactFloat64())
	metrics.TotalVolume.Set(a.TotalVolume.InexactFloat64())
	if a.DominanceAsset != "" {
		metrics.Dominance.WithLabelValues(a.DominanceAsset).Set(a.Dominance.InexactFloat64())
	}
}

func humanInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
