package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/web3-frozen/market-snapshot/internal/market"
	"github.com/web3-frozen/market-snapshot/internal/monitor"
)

// LatestKey holds the most recent snapshot as JSON.
const LatestKey = "market:snapshot:latest"

// ErrNoSnapshot is returned by Latest when nothing has been published or the
// key expired.
var ErrNoSnapshot = errors.New("cache: no snapshot")

// Entry is the payload stored under LatestKey.
type Entry struct {
	Currency string           `json:"currency"`
	Records  []market.Record  `json:"records"`
	Analysis *market.Analysis `json:"analysis"`
}

// Publisher writes each cycle's snapshot to Redis so other processes can read
// the latest market state without touching the artifacts.
type Publisher struct {
	rdb      *redis.Client
	ttl      time.Duration
	currency string
}

// New creates a Publisher backed by Redis. Entries expire after ttl; zero
// means no expiry.
func New(redisURL, password string, ttl time.Duration, currency string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Publisher{rdb: rdb, ttl: ttl, currency: currency}, nil
}

// Close shuts down the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

func (p *Publisher) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func (p *Publisher) Name() string { return "redis" }

// Render publishes the snapshot under LatestKey.
func (p *Publisher) Render(ctx context.Context, records []market.Record, a *market.Analysis) error {
	payload, err := json.Marshal(Entry{Currency: p.currency, Records: records, Analysis: a})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.rdb.Set(ctx, LatestKey, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Latest reads back the last published snapshot.
func (p *Publisher) Latest(ctx context.Context) (*Entry, error) {
	raw, err := p.rdb.Get(ctx, LatestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &e, nil
}

// LatestSnapshot adapts Latest for the API, which falls back to Redis until
// the engine has finished a cycle of its own.
func (p *Publisher) LatestSnapshot(ctx context.Context) (*monitor.Snapshot, error) {
	e, err := p.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if e.Analysis == nil {
		return nil, fmt.Errorf("decode snapshot: missing analysis")
	}
	return &monitor.Snapshot{
		Source:    p.Name(),
		Currency:  e.Currency,
		Records:   e.Records,
		Analysis:  e.Analysis,
		FetchedAt: e.Analysis.GeneratedAt,
	}, nil
}
