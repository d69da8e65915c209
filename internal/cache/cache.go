// Package cache stores completed analyses in SQLite, keyed by page URL,
// with wall-clock expiry.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/v0xg/bddgen/internal/detector"
	"github.com/v0xg/bddgen/internal/scenario"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// Entry is one cached analysis.
type Entry struct {
	URL            string                  `json:"url"`
	Interactions   []*detector.Interaction `json:"interactions"`
	Scenarios      []scenario.Scenario     `json:"scenarios"`
	FeatureContent string                  `json:"feature_content"`
	CreatedAt      time.Time               `json:"created_at"`
	ExpiresAt      time.Time               `json:"expires_at"`
}

// Info describes a cached entry without its payload.
type Info struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

// Cache is a SQLite-backed analysis cache.
type Cache struct {
	db     *sql.DB
	expiry time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the cache database at path.
func Open(path string, expiry time.Duration, logger *zap.Logger) (*Cache, error) {
	if expiry <= 0 {
		return nil, fmt.Errorf("cache expiry must be positive, got %s", expiry)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps pragmas and writes on a single handle.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Named("cache").Debug("Cache opened", zap.String("path", path), zap.Duration("expiry", expiry))
	return &Cache{db: db, expiry: expiry, logger: logger.Named("cache"), now: time.Now}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Store saves an analysis for url, replacing any previous entry.
func (c *Cache) Store(ctx context.Context, url string, interactions []*detector.Interaction, scenarios []scenario.Scenario, feature string) error {
	if interactions == nil {
		interactions = []*detector.Interaction{}
	}
	if scenarios == nil {
		scenarios = []scenario.Scenario{}
	}
	insJSON, err := json.Marshal(interactions)
	if err != nil {
		return fmt.Errorf("failed to marshal interactions: %w", err)
	}
	scJSON, err := json.Marshal(scenarios)
	if err != nil {
		return fmt.Errorf("failed to marshal scenarios: %w", err)
	}

	created := c.now().UTC()
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache (url, interactions, scenarios, feature_content, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		url, string(insJSON), string(scJSON), feature,
		created.Format(time.RFC3339Nano), created.Add(c.expiry).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	c.logger.Info("Cached analysis", zap.String("url", url))
	return nil
}

// Get returns the entry for url, or nil on a miss. Expired entries are
// deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, url string) (*Entry, error) {
	var insJSON, scJSON, created, expires string
	e := &Entry{URL: url}
	err := c.db.QueryRowContext(ctx,
		`SELECT interactions, scenarios, feature_content, created_at, expires_at FROM cache WHERE url = ?`, url,
	).Scan(&insJSON, &scJSON, &e.FeatureContent, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	if e.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, fmt.Errorf("invalid expires_at %q: %w", expires, err)
	}
	if c.now().After(e.ExpiresAt) {
		c.logger.Info("Cache expired", zap.String("url", url))
		if err := c.Invalidate(ctx, url); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := json.Unmarshal([]byte(insJSON), &e.Interactions); err != nil {
		return nil, fmt.Errorf("failed to decode cached interactions: %w", err)
	}
	if err := json.Unmarshal([]byte(scJSON), &e.Scenarios); err != nil {
		return nil, fmt.Errorf("failed to decode cached scenarios: %w", err)
	}
	c.logger.Info("Cache hit", zap.String("url", url))
	return e, nil
}

// Invalidate removes the entry for url.
func (c *Cache) Invalidate(ctx context.Context, url string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE url = ?`, url); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were deleted.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	n, _ := res.RowsAffected()
	c.logger.Info("Cache cleared", zap.Int64("entries", n))
	return n, nil
}

// List describes every entry, newest first.
func (c *Cache) List(ctx context.Context) ([]Info, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT url, created_at, expires_at FROM cache ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	defer rows.Close()

	now := c.now()
	var out []Info
	for rows.Next() {
		var info Info
		var created, expires string
		if err := rows.Scan(&info.URL, &created, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		info.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
		info.Expired = now.After(info.ExpiresAt)
		out = append(out, info)
	}
	return out, rows.Err()
}
