package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/web3-frozen/market-snapshot/internal/config"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":67000.12,"market_cap":1320000000000,"total_volume":30000000000,"price_change_percentage_24h":1.25},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":2600.5,"market_cap":312000000000,"total_volume":15000000000,"price_change_percentage_24h":-2.4},
  {"id":"tether","symbol":"usdt","name":"Tether","current_price":1.0001,"market_cap":118000000000,"total_volume":50000000000,"price_change_percentage_24h":null}
]`

func marketsServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(marketsBody))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEnv points every config key at the temp dir and the fake upstream.
func testEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"TRACKER_ENV_FILE":    filepath.Join(dir, ".env"),
		"TRACKER_CONFIG":      "",
		"COINGECKO_API_URL":   apiURL,
		"MIN_REQUEST_GAP":     "0",
		"REQUEST_TIMEOUT":     "5s",
		"WORKBOOK_PATH":       filepath.Join(dir, "live.xlsx"),
		"WORKBOOK_MODE":       "",
		"TEXT_REPORT_PATH":    filepath.Join(dir, "report.txt"),
		"HTML_REPORT_PATH":    filepath.Join(dir, "report.html"),
		"HTML_REPORT_IN_LOOP": "",
		"PARQUET_PATH":        filepath.Join(dir, "live.parquet"),
		"PDF_REPORT_PATH":     "",
		"REDIS_URL":           "",
		"DATABASE_URL":        "",
		"PORT":                "",
		"LOG_LEVEL":           "error",
		"INFISICAL_CLIENT_ID": "",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestOnceWritesArtifacts(t *testing.T) {
	srv := marketsServer(t, http.StatusOK)
	dir := testEnv(t, srv.URL)

	out, err := execute(t, "once")
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	if !strings.Contains(out, "Update #1 - ") || !strings.Contains(out, "ok (3 assets)") {
		t.Errorf("status line missing: %q", out)
	}
	for _, name := range []string{"live.xlsx", "report.txt", "live.parquet"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "report.html")); !os.IsNotExist(err) {
		t.Errorf("html report should be off in the loop, stat err = %v", err)
	}
}

func TestOnceFetchFailure(t *testing.T) {
	srv := marketsServer(t, http.StatusTooManyRequests)
	dir := testEnv(t, srv.URL)

	out, err := execute(t, "once")
	if err == nil || !strings.Contains(err.Error(), "fetch_failed") {
		t.Fatalf("err = %v, want fetch_failed", err)
	}
	if !strings.Contains(out, "Will retry in the next cycle.") {
		t.Errorf("status line = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "live.xlsx")); !os.IsNotExist(err) {
		t.Error("workbook written despite fetch failure")
	}
}

func TestReportCommand(t *testing.T) {
	srv := marketsServer(t, http.StatusOK)
	dir := testEnv(t, srv.URL)

	out, err := execute(t, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	htmlPath := filepath.Join(dir, "report.html")
	if !strings.Contains(out, "HTML report generated at "+htmlPath) {
		t.Errorf("output = %q", out)
	}
	page, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "Cryptocurrency Market Analysis Report") {
		t.Error("html report body missing title")
	}
	if _, err := os.Stat(filepath.Join(dir, "live.xlsx")); !os.IsNotExist(err) {
		t.Error("report command should not touch the workbook")
	}
}

func TestRootRejectsArgs(t *testing.T) {
	if _, err := execute(t, "unexpected"); err == nil {
		t.Error("root command accepted a positional argument")
	}
}

func TestBadConfig(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")
	t.Setenv("ASSET_LIMIT", "0")
	if _, err := execute(t, "once"); err == nil || !strings.Contains(err.Error(), "ASSET_LIMIT") {
		t.Errorf("err = %v, want ASSET_LIMIT validation error", err)
	}
}

func TestFileRenderers(t *testing.T) {
	names := func(cfg config.Config) []string {
		var out []string
		for _, r := range fileRenderers(cfg) {
			out = append(out, r.Name())
		}
		return out
	}

	base := config.Config{WorkbookMode: config.WorkbookRewrite, Currency: "usd"}
	if got, want := names(base), []string{"workbook", "text_report"}; !reflect.DeepEqual(got, want) {
		t.Errorf("defaults = %v, want %v", got, want)
	}

	all := base
	all.WorkbookMode = config.WorkbookInPlace
	all.HTMLReportInLoop = true
	all.PDFReportPath = "r.pdf"
	all.ParquetPath = "live.parquet"
	want := []string{"live_workbook", "text_report", "html_report", "pdf_report", "parquet"}
	if got := names(all); !reflect.DeepEqual(got, want) {
		t.Errorf("all = %v, want %v", got, want)
	}
}

func TestRetry(t *testing.T) {
	oldBackoff := connectBackoff
	connectBackoff = time.Millisecond
	t.Cleanup(func() { connectBackoff = oldBackoff })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	calls := 0
	v, err := retry(context.Background(), logger, "test", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil || v != 42 || calls != 3 {
		t.Errorf("retry = %d, %v after %d calls", v, err, calls)
	}

	calls = 0
	_, err = retry(context.Background(), logger, "test", func() (int, error) {
		calls++
		return 0, errors.New("down")
	})
	if err == nil || calls != connectAttempts {
		t.Errorf("retry = %v after %d calls, want error after %d", err, calls, connectAttempts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	connectBackoff = time.Hour
	if _, err := retry(ctx, logger, "test", func() (int, error) { return 0, errors.New("down") }); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled retry err = %v", err)
	}
}

func TestRouter(t *testing.T) {
	srv := marketsServer(t, http.StatusOK)
	testEnv(t, srv.URL)
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := build(context.Background(), cfg, logger, io.Discard, reportRenderers)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	h := newRouter(a, cfg, logger)

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/health"); code != http.StatusOK {
		t.Errorf("/health = %d", code)
	}
	if code := get("/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("/ready before first cycle = %d, want 503", code)
	}
	if code := get("/api/snapshot"); code != http.StatusServiceUnavailable {
		t.Errorf("/api/snapshot before first cycle = %d, want 503", code)
	}

	if _, err := a.engine.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/ready", "/api/snapshot", "/api/analysis", "/api/records", "/api/meta", "/metrics"} {
		if code := get(path); code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, code)
		}
	}
	if code := get("/api/unknown"); code != http.StatusNotFound {
		t.Errorf("/api/unknown = %d, want 404", code)
	}
}
