package store

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/web3-frozen/market-snapshot/internal/monitor"
)

// Store keeps the latest snapshot in Postgres. Only the current state is
// held: each Render replaces both tables in one transaction.
type Store struct {
	pool     *pgxpool.Pool
	currency string
}

// New connects to Postgres. currency is recorded with every summary so a
// stored snapshot can be served back in its quote currency.
func New(ctx context.Context, databaseURL, currency string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, currency: currency}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Name() string { return "postgres" }

var latestColumns = []string{
	"rank", "name", "symbol", "price", "market_cap", "volume_24h", "change_24h_pct", "generated_at",
}

const upsertSummarySQL = `
INSERT INTO market_summary (id, total_market_cap, total_volume, average_price, median_price,
    dominance_asset, dominance, asset_count, generated_at, top_k, currency)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    total_market_cap = EXCLUDED.total_market_cap,
    total_volume = EXCLUDED.total_volume,
    average_price = EXCLUDED.average_price,
    median_price = EXCLUDED.median_price,
    dominance_asset = EXCLUDED.dominance_asset,
    dominance = EXCLUDED.dominance,
    asset_count = EXCLUDED.asset_count,
    generated_at = EXCLUDED.generated_at,
    top_k = EXCLUDED.top_k,
    currency = EXCLUDED.currency`

// Render replaces market_latest with records and upserts the summary row.
func (s *Store) Render(ctx context.Context, records []market.Record, a *market.Analysis) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM market_latest`); err != nil {
		return fmt.Errorf("clear market_latest: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market_latest"}, latestColumns,
		pgx.CopyFromRows(latestRows(records, a.GeneratedAt))); err != nil {
		return fmt.Errorf("copy market_latest: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertSummarySQL, summaryArgs(a, s.currency)...); err != nil {
		return fmt.Errorf("upsert market_summary: %w", err)
	}
	return tx.Commit(ctx)
}

func latestRows(records []market.Record, at time.Time) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{i + 1, r.Name, r.Symbol, r.Price, r.MarketCap, r.Volume24h, r.Change24hPct, at}
	}
	return rows
}

func summaryArgs(a *market.Analysis, currency string) []any {
	return []any{
		a.TotalMarketCap, a.TotalVolume, a.AveragePrice, a.MedianPrice,
		a.DominanceAsset, a.Dominance, a.Count, a.GeneratedAt, a.TopK, currency,
	}
}

// Summary is the stored market_summary row.
type Summary struct {
	TotalMarketCap decimal.Decimal `json:"total_market_cap"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	MedianPrice    decimal.Decimal `json:"median_price"`
	DominanceAsset string          `json:"dominance_asset"`
	Dominance      decimal.Decimal `json:"dominance"`
	Count          int             `json:"count"`
	GeneratedAt    time.Time       `json:"generated_at"`
	TopK           int             `json:"top_k"`
	Currency       string          `json:"currency"`
}

// LatestSummary returns the summary row, or pgx.ErrNoRows before the first
// snapshot.
func (s *Store) LatestSummary(ctx context.Context) (*Summary, error) {
	var sm Summary
	err := s.pool.QueryRow(ctx,
		`SELECT total_market_cap, total_volume, average_price, median_price,
		        dominance_asset, dominance, asset_count, generated_at, top_k, currency
		 FROM market_summary WHERE id = 1`).
		Scan(&sm.TotalMarketCap, &sm.TotalVolume, &sm.AveragePrice, &sm.MedianPrice,
			&sm.DominanceAsset, &sm.Dominance, &sm.Count, &sm.GeneratedAt, &sm.TopK, &sm.Currency)
	if err != nil {
		return nil, err
	}
	return &sm, nil
}

// LatestRecords returns market_latest in rank order.
func (s *Store) LatestRecords(ctx context.Context) ([]market.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, symbol, price, market_cap, volume_24h, change_24h_pct
		 FROM market_latest ORDER BY rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []market.Record
	for rows.Next() {
		var r market.Record
		if err := rows.Scan(&r.Name, &r.Symbol, &r.Price, &r.MarketCap, &r.Volume24h, &r.Change24hPct); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestSnapshot rebuilds the stored snapshot for the API fallback. The
// tables hold the full record set, so the rankings are derived again with
// the stored K, dominance asset and timestamp.
func (s *Store) LatestSnapshot(ctx context.Context) (*monitor.Snapshot, error) {
	sm, err := s.LatestSummary(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.LatestRecords(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotFrom(s.Name(), records, sm)
}

func snapshotFrom(source string, records []market.Record, sm *Summary) (*monitor.Snapshot, error) {
	an := &market.Analyzer{
		TopK:           sm.TopK,
		DominanceAsset: sm.DominanceAsset,
		Now:            func() time.Time { return sm.GeneratedAt },
	}
	a, err := an.Analyze(records)
	if err != nil {
		return nil, fmt.Errorf("rebuild analysis: %w", err)
	}
	return &monitor.Snapshot{
		Source:    source,
		Currency:  sm.Currency,
		Records:   records,
		Analysis:  a,
		FetchedAt: sm.GeneratedAt,
	}, nil
}
