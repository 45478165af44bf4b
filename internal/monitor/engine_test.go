package monitor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/web3-frozen/market-snapshot/internal/market"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	mu    sync.Mutex
	calls int
	raw   []market.RawAsset
	errs  []error // consumed one per call; nil entries mean success
	panic bool
}

func (m *mockFetcher) Name() string { return "mock" }

func (m *mockFetcher) FetchMarkets(ctx context.Context, limit int, currency string) ([]market.RawAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.panic {
		panic("upstream client blew up")
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.raw, nil
}

// mockRenderer implements Renderer for testing.
type mockRenderer struct {
	name  string
	calls int
	err   error
	last  *market.Analysis
}

func (m *mockRenderer) Name() string { return m.name }

func (m *mockRenderer) Render(_ context.Context, _ []market.Record, a *market.Analysis) error {
	m.calls++
	m.last = a
	return m.err
}

func strPtr(s string) *string { return &s }

func rawAsset(name, sym string, price, mcap int64) market.RawAsset {
	return market.RawAsset{
		ID:           strings.ToLower(name),
		Name:         strPtr(name),
		Symbol:       strPtr(sym),
		CurrentPrice: decimal.NewNullDecimal(decimal.NewFromInt(price)),
		MarketCap:    decimal.NewNullDecimal(decimal.NewFromInt(mcap)),
		TotalVolume:  decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}
}

func testRaw() []market.RawAsset {
	return []market.RawAsset{
		rawAsset("Bitcoin", "btc", 60000, 1200),
		rawAsset("Ethereum", "eth", 3000, 400),
		rawAsset("Solana", "sol", 150, 80),
	}
}

func newTestEngine(f Fetcher, out io.Writer) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(f, nil, logger, Options{Out: out, Interval: time.Minute})
	e.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRunOnceSuccess(t *testing.T) {
	var out bytes.Buffer
	f := &mockFetcher{raw: testRaw()}
	e := newTestEngine(f, &out)
	r := &mockRenderer{name: "workbook"}
	e.Register(r)

	res, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if res.Outcome != OutcomeOK || res.Assets != 3 || res.Cycle != 1 {
		t.Errorf("result = %+v", res)
	}
	if r.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls)
	}
	if got := out.String(); got != "Update #1 - 2026-10-18 12:00:00 - ok (3 assets). Next update in 1 minute.\n" {
		t.Errorf("status line = %q", got)
	}

	snap := e.GetSnapshot()
	if snap == nil || snap.Analysis != r.last || len(snap.Records) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Records[0].Symbol != "BTC" {
		t.Errorf("Records[0].Symbol = %q, want BTC", snap.Records[0].Symbol)
	}
}

func TestRunOnceFetchFailureSkipsPipeline(t *testing.T) {
	var out bytes.Buffer
	fetchErr := &market.FetchError{Source: "mock", Status: 429, Err: errors.New("too many requests")}
	f := &mockFetcher{errs: []error{fetchErr}}
	e := newTestEngine(f, &out)
	r := &mockRenderer{name: "workbook"}
	e.Register(r)

	res, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned fault for a fetch failure: %v", err)
	}
	if res.Outcome != OutcomeFetchFailed {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeFetchFailed)
	}
	var fe *market.FetchError
	if !errors.As(res.Err, &fe) {
		t.Errorf("Err = %v, want *market.FetchError", res.Err)
	}
	if r.calls != 0 {
		t.Errorf("renderer invoked %d times after fetch failure", r.calls)
	}
	if e.GetSnapshot() != nil {
		t.Error("snapshot set after fetch failure")
	}
	if !strings.Contains(out.String(), "fetch_failed") {
		t.Errorf("status line = %q, want fetch_failed", out.String())
	}
}

func TestRunOnceCancelledDuringFetch(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mockFetcher{errs: []error{&market.FetchError{Source: "mock", Err: ctx.Err()}}}
	e := newTestEngine(f, &out)

	res, err := e.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if res.Outcome != OutcomeCancelled {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCancelled)
	}
	if got := out.String(); got != "Update #1 - 2026-10-18 12:00:00 - cancelled.\n" {
		t.Errorf("status line = %q", got)
	}
	if strings.Contains(out.String(), "Will retry") {
		t.Error("cancelled cycle promised a retry")
	}
}

func TestRunOnceMalformedAndEmpty(t *testing.T) {
	bad := testRaw()
	bad[1].MarketCap = decimal.NullDecimal{}

	tests := []struct {
		name string
		raw  []market.RawAsset
		want Outcome
	}{
		{"malformed", bad, OutcomeMalformedRecord},
		{"empty", []market.RawAsset{}, OutcomeEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(&mockFetcher{raw: tt.raw}, io.Discard)
			r := &mockRenderer{name: "text"}
			e.Register(r)

			res, err := e.RunOnce(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.want)
			}
			if r.calls != 0 {
				t.Errorf("renderer called %d times", r.calls)
			}
		})
	}
}

func TestRunOnceRenderFailureRunsAllRenderers(t *testing.T) {
	e := newTestEngine(&mockFetcher{raw: testRaw()}, io.Discard)
	bad := &mockRenderer{name: "workbook", err: errors.New("disk full")}
	good := &mockRenderer{name: "text"}
	e.Register(bad)
	e.Register(good)

	res, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeRenderFailed {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeRenderFailed)
	}
	var re *market.RenderError
	if !errors.As(res.Err, &re) || re.Renderer != "workbook" {
		t.Errorf("Err = %v, want RenderError from workbook", res.Err)
	}
	if good.calls != 1 {
		t.Errorf("second renderer calls = %d, want 1", good.calls)
	}

	// next cycle proceeds normally
	bad.err = nil
	res, err = e.RunOnce(context.Background())
	if err != nil || res.Outcome != OutcomeOK || res.Cycle != 2 {
		t.Errorf("second cycle = %+v, %v", res, err)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	var out bytes.Buffer
	e := newTestEngine(&mockFetcher{panic: true}, &out)

	_, err := e.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected unclassified fault, got nil")
	}
	if !strings.Contains(out.String(), "aborted") {
		t.Errorf("status line = %q, want aborted", out.String())
	}
}

func TestRunContinuesAfterFailuresUntilCancelled(t *testing.T) {
	f := &mockFetcher{
		raw:  testRaw(),
		errs: []error{&market.FetchError{Source: "mock", Err: errors.New("dial tcp: timeout")}, nil, nil},
	}
	var out bytes.Buffer
	e := newTestEngine(f, &out)
	r := &mockRenderer{name: "workbook"}
	e.Register(r)

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if f.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", f.calls)
	}
	if r.calls != 2 {
		t.Errorf("render calls = %d, want 2", r.calls)
	}
	for _, d := range sleeps {
		if d != time.Minute {
			t.Errorf("slept %v, want 1m", d)
		}
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "Update #1") || !strings.Contains(lines[0], "fetch_failed") {
		t.Errorf("status lines = %q", lines)
	}
}

func TestRunStopsOnFault(t *testing.T) {
	e := newTestEngine(&mockFetcher{panic: true}, io.Discard)
	e.sleep = func(context.Context, time.Duration) error {
		t.Fatal("sleep after fault")
		return nil
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("Run returned nil after fault")
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepCtx did not return promptly")
	}
}

func TestRenderOnce(t *testing.T) {
	inner := &mockRenderer{name: "text", err: errors.New("permission denied")}
	r := RenderOnce(inner)
	if r.Name() != "text" {
		t.Errorf("Name = %q", r.Name())
	}

	if err := r.Render(context.Background(), nil, nil); err == nil {
		t.Fatal("expected first failure to surface")
	}
	inner.err = nil
	for i := 0; i < 3; i++ {
		if err := r.Render(context.Background(), nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2 (one failure, one success)", inner.calls)
	}
}

func TestHumanInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{300 * time.Second, "5 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "1m30s"},
		{10 * time.Second, "10s"},
	}
	for _, tt := range tests {
		if got := humanInterval(tt.in); got != tt.want {
			t.Errorf("humanInterval(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEngineRegisterAndRendererNames(t *testing.T) {
	e := newTestEngine(&mockFetcher{}, io.Discard)
	e.Register(&mockRenderer{name: "workbook"})
	e.Register(&mockRenderer{name: "text"})

	names := e.RendererNames()
	if len(names) != 2 || names[0] != "workbook" || names[1] != "text" {
		t.Errorf("RendererNames = %v", names)
	}
	if e.Interval() != time.Minute {
		t.Errorf("Interval = %v", e.Interval())
	}
}
