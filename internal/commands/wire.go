package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web3-frozen/market-snapshot/internal/cache"
	"github.com/web3-frozen/market-snapshot/internal/config"
	"github.com/web3-frozen/market-snapshot/internal/handler"
	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/web3-frozen/market-snapshot/internal/middleware"
	"github.com/web3-frozen/market-snapshot/internal/monitor"
	"github.com/web3-frozen/market-snapshot/internal/monitor/sources"
	"github.com/web3-frozen/market-snapshot/internal/render"
	"github.com/web3-frozen/market-snapshot/internal/store"
)

// rendererSet picks which renderers a command registers.
type rendererSet int

const (
	loopRenderers rendererSet = iota
	reportRenderers
)

// connectAttempts and connectBackoff bound the start-up wait for Redis and
// Postgres, which may come up after the tracker in a compose or k8s setup.
var (
	connectAttempts = 6
	connectBackoff  = 5 * time.Second
)

// app holds the engine and everything that must be closed with it.
type app struct {
	engine    *monitor.Engine
	pingers   []handler.Pinger
	fallbacks []handler.Fallback
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer, set rendererSet) (*app, error) {
	fetcher := sources.NewCoinGecko(cfg.APIURL, cfg.RequestTimeout, cfg.MinRequestGap)
	analyzer := &market.Analyzer{TopK: cfg.TopK, DominanceAsset: cfg.DominanceAsset, Now: time.Now}
	engine := monitor.NewEngine(fetcher, analyzer, logger, monitor.Options{
		Limit:    cfg.Limit,
		Currency: cfg.Currency,
		Interval: cfg.RefreshInterval,
		Out:      out,
	})
	a := &app{engine: engine}

	if set == reportRenderers {
		engine.Register(render.NewHTMLReport(cfg.HTMLReportPath, cfg.Currency))
		if cfg.PDFReportPath != "" {
			engine.Register(render.NewPDFReport(cfg.PDFReportPath, cfg.Currency, cfg.ChromePath))
		}
		return a, nil
	}

	for _, r := range fileRenderers(cfg) {
		engine.Register(r)
	}

	if cfg.RedisURL != "" {
		ttl := 2 * cfg.RefreshInterval
		pub, err := retry(ctx, logger, "redis", func() (*cache.Publisher, error) {
			return cache.New(cfg.RedisURL, cfg.RedisPassword, ttl, cfg.Currency)
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		a.pingers = append(a.pingers, pub)
		a.fallbacks = append(a.fallbacks, pub)
		engine.Register(pub)
		logger.Info("redis connected for snapshot publishing")
	}

	if cfg.DatabaseURL != "" {
		db, err := retry(ctx, logger, "postgres", func() (*store.Store, error) {
			return store.New(ctx, cfg.DatabaseURL, cfg.Currency)
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.pingers = append(a.pingers, db)
		a.fallbacks = append(a.fallbacks, db)
		engine.Register(db)
		logger.Info("database connected and migrated")
	}
	return a, nil
}

// fileRenderers returns the artifact writers of the loop, in order.
func fileRenderers(cfg config.Config) []monitor.Renderer {
	var rs []monitor.Renderer
	if cfg.WorkbookMode == config.WorkbookInPlace {
		rs = append(rs, render.NewLiveWorkbook(cfg.WorkbookPath, cfg.Currency))
	} else {
		rs = append(rs, render.NewWorkbook(cfg.WorkbookPath, cfg.Currency))
	}
	rs = append(rs, monitor.RenderOnce(render.NewTextReport(cfg.TextReportPath, cfg.Currency)))
	if cfg.HTMLReportInLoop {
		rs = append(rs, render.NewHTMLReport(cfg.HTMLReportPath, cfg.Currency))
	}
	if cfg.PDFReportPath != "" {
		rs = append(rs, render.NewPDFReport(cfg.PDFReportPath, cfg.Currency, cfg.ChromePath))
	}
	if cfg.ParquetPath != "" {
		rs = append(rs, render.NewParquet(cfg.ParquetPath))
	}
	return rs
}

// retry calls connect until it succeeds, attempts run out or ctx ends.
func retry[T any](ctx context.Context, logger *slog.Logger, name string, connect func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		if v, err = connect(); err == nil {
			return v, nil
		}
		logger.Warn(name+" not ready, retrying...", "attempt", i+1, "error", err)
		if i == connectAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return v, err
}

func newRouter(a *app, cfg config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handler.Health())
	r.Get("/ready", handler.Ready(a.engine, a.pingers...))

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", handler.Snapshot(a.engine, a.fallbacks...))
		r.Get("/analysis", handler.Analysis(a.engine, a.fallbacks...))
		r.Get("/records", handler.Records(a.engine, a.fallbacks...))
		r.Get("/meta", handler.Meta(a.engine))
	})
	return r
}
