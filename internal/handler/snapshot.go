package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/web3-frozen/market-snapshot/internal/monitor"
)

const noData = `{"error":"no data available yet"}`

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Fallback supplies a persisted snapshot while the engine has none of its
// own, e.g. right after a restart. Redis and Postgres implement it.
type Fallback interface {
	LatestSnapshot(ctx context.Context) (*monitor.Snapshot, error)
}

// current returns the engine's snapshot, else the first fallback that has
// one, else nil.
func current(ctx context.Context, engine *monitor.Engine, fallbacks []Fallback) *monitor.Snapshot {
	if snap := engine.GetSnapshot(); snap != nil {
		return snap
	}
	for _, f := range fallbacks {
		snap, err := f.LatestSnapshot(ctx)
		if err == nil && snap != nil {
			return snap
		}
	}
	return nil
}

// Snapshot serves the latest snapshot: records plus analysis.
func Snapshot(engine *monitor.Engine, fallbacks ...Fallback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := current(r.Context(), engine, fallbacks)
		if snap == nil {
			http.Error(w, noData, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	}
}

// Analysis serves only the aggregate of the latest snapshot.
func Analysis(engine *monitor.Engine, fallbacks ...Fallback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := current(r.Context(), engine, fallbacks)
		if snap == nil {
			http.Error(w, noData, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap.Analysis)
	}
}

// Records serves the latest record set in fetch order. Optional query
// parameters: symbol (case-insensitive match) and limit.
func Records(engine *monitor.Engine, fallbacks ...Fallback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := current(r.Context(), engine, fallbacks)
		if snap == nil {
			http.Error(w, noData, http.StatusServiceUnavailable)
			return
		}

		records := snap.Records
		if sym := r.URL.Query().Get("symbol"); sym != "" {
			for _, rec := range records {
				if strings.EqualFold(rec.Symbol, sym) {
					writeJSON(w, rec)
					return
				}
			}
			http.Error(w, `{"error":"unknown symbol"}`, http.StatusNotFound)
			return
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			if n < len(records) {
				records = records[:n]
			}
		}
		writeJSON(w, records)
	}
}

// Meta describes the running tracker.
func Meta(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := struct {
			Renderers       []string `json:"renderers"`
			RefreshInterval string   `json:"refresh_interval"`
			LastCycle       int      `json:"last_cycle"`
		}{
			Renderers:       engine.RendererNames(),
			RefreshInterval: engine.Interval().String(),
		}
		if snap := engine.GetSnapshot(); snap != nil {
			resp.LastCycle = snap.Cycle
		}
		writeJSON(w, resp)
	}
}
