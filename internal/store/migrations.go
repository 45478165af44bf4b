package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS market_latest (
    rank INT PRIMARY KEY,
    name TEXT NOT NULL,
    symbol TEXT NOT NULL,
    price NUMERIC NOT NULL,
    market_cap NUMERIC NOT NULL,
    volume_24h NUMERIC NOT NULL,
    change_24h_pct NUMERIC NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS market_summary (
    id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    total_market_cap NUMERIC NOT NULL,
    total_volume NUMERIC NOT NULL,
    average_price NUMERIC NOT NULL,
    median_price NUMERIC NOT NULL,
    dominance_asset TEXT NOT NULL DEFAULT '',
    dominance NUMERIC NOT NULL,
    asset_count INT NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE market_summary ADD COLUMN IF NOT EXISTS top_k INT NOT NULL DEFAULT 5;
ALTER TABLE market_summary ADD COLUMN IF NOT EXISTS currency TEXT NOT NULL DEFAULT 'usd';
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
