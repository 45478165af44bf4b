package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_snapshot",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market_snapshot",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Cycle metrics ──────────────────────────────────────────────────────

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_snapshot",
		Subsystem: "cycle",
		Name:      "total",
		Help:      "Total number of cycles by outcome.",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "market_snapshot",
		Subsystem: "cycle",
		Name:      "duration_seconds",
		Help:      "Duration of a full fetch/analyze/render cycle in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	CycleLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "cycle",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful cycle.",
	})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market_snapshot",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of the upstream market listing call in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	RenderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_snapshot",
		Subsystem: "render",
		Name:      "total",
		Help:      "Total renderer invocations by renderer and status.",
	}, []string{"renderer", "status"})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market_snapshot",
		Subsystem: "render",
		Name:      "duration_seconds",
		Help:      "Duration of one renderer invocation in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"renderer"})
)

// ── Business metrics ───────────────────────────────────────────────────

var (
	AssetsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "business",
		Name:      "assets_tracked",
		Help:      "Number of assets in the latest analysis.",
	})

	TotalMarketCap = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "business",
		Name:      "total_market_cap",
		Help:      "Sum of market capitalisation across tracked assets, in quote currency.",
	})

	TotalVolume = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "business",
		Name:      "total_volume_24h",
		Help:      "Sum of 24h trading volume across tracked assets, in quote currency.",
	})

	Dominance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market_snapshot",
		Subsystem: "business",
		Name:      "dominance_percent",
		Help:      "Named asset's share of total market capitalisation.",
	}, []string{"asset"})
)
