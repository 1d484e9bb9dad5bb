package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"nftlens/clients/analytics"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// KeyAPIKey is the fixed key the analytics API key is stored under.
	KeyAPIKey = "nft_analytics_api_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metric_series (
	collection  TEXT NOT NULL,
	window_days INTEGER NOT NULL,
	fetched_at  INTEGER NOT NULL,
	points      TEXT NOT NULL,
	PRIMARY KEY (collection, window_days)
);
`

// ErrNotFound is returned when a metric series is not cached.
var ErrNotFound = errors.New("not found")

// Store is the local SQLite store backing the API key, persisted settings
// and the metric series cache. A single file keeps every durable concern of
// the daemon in one place.
type Store struct {
	logger *zap.Logger
	db     *sql.DB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the store at path and applies the schema.
func Open(logger *zap.Logger, path string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		logger: logger.Named("store"),
		db:     db,
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read kv %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("write kv %q: %w", key, err)
	}
	return nil
}

// APIKey returns the stored analytics API key, or "" when unset.
// Implements analytics.KeySource.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyAPIKey)
}

// SetAPIKey persists the analytics API key.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, KeyAPIKey, key)
}

// LoadJSON reads a JSON value stored under key into dest. Missing keys leave
// dest untouched. Implements config.SettingsStorage.
func (s *Store) LoadJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode kv %q: %w", key, err)
	}
	return nil
}

// SaveJSON stores data as JSON under key. Implements config.SettingsStorage.
func (s *Store) SaveJSON(ctx context.Context, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode kv %q: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}

// SaveMetricSeries caches a fetched metric series for a collection.
// The whole series is replaced; stale points never mix with fresh ones.
func (s *Store) SaveMetricSeries(ctx context.Context, collection string, windowDays int, points []analytics.MetricPoint) error {
	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode metric series: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metric_series (collection, window_days, fetched_at, points) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, window_days) DO UPDATE SET fetched_at = excluded.fetched_at, points = excluded.points`,
		collection, windowDays, toMillis(time.Now()), string(raw),
	)
	if err != nil {
		return fmt.Errorf("write metric series %q: %w", collection, err)
	}

	s.logger.Debug("cached metric series",
		zap.String("collection", collection),
		zap.Int("window_days", windowDays),
		zap.Int("points", len(points)),
	)
	return nil
}

// MetricSeries returns a cached series and when it was fetched.
// Returns ErrNotFound when nothing is cached for the collection/window.
func (s *Store) MetricSeries(ctx context.Context, collection string, windowDays int) ([]analytics.MetricPoint, time.Time, error) {
	var (
		fetchedAt int64
		raw       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, points FROM metric_series WHERE collection = ? AND window_days = ?`,
		collection, windowDays,
	).Scan(&fetchedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read metric series %q: %w", collection, err)
	}

	var points []analytics.MetricPoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode metric series %q: %w", collection, err)
	}

	return points, fromMillis(fetchedAt), nil
}
