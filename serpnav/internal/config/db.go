package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/navkit/watch"
)

// Schema for the nav_pages table.
const Schema = `
CREATE TABLE IF NOT EXISTS nav_pages (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	status     TEXT DEFAULT 'active',
	updated_at INTEGER NOT NULL
);
`

// DBPage is a row from the nav_pages table.
type DBPage struct {
	ID        string
	URL       string
	Status    string
	UpdatedAt time.Time
}

// Page converts the row to a PageConfig.
func (p DBPage) Page() PageConfig {
	return PageConfig{ID: p.ID, URL: p.URL}
}

// EnsureSchema creates the nav_pages table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("config: create nav_pages: %w", err)
	}
	return nil
}

// LoadPages reads all active pages from the database, oldest first.
func LoadPages(ctx context.Context, db *sql.DB) ([]DBPage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, url, status, updated_at
		FROM nav_pages
		WHERE status = 'active'
		ORDER BY updated_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("config: load pages: %w", err)
	}
	defer rows.Close()

	var pages []DBPage
	for rows.Next() {
		var p DBPage
		var updated int64
		if err := rows.Scan(&p.ID, &p.URL, &p.Status, &updated); err != nil {
			return nil, fmt.Errorf("config: scan page: %w", err)
		}
		p.UpdatedAt = time.UnixMilli(updated)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// UpsertPage inserts or updates an active page.
func UpsertPage(ctx context.Context, db *sql.DB, p PageConfig) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO nav_pages (id, url, status, updated_at) VALUES (?, ?, 'active', ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, status = 'active', updated_at = excluded.updated_at
	`, p.ID, p.URL, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("config: upsert page %q: %w", p.ID, err)
	}
	return nil
}

// WatchPages creates a watch.Watcher that detects changes to nav_pages.
func WatchPages(db *sql.DB, logger *slog.Logger) *watch.Watcher {
	return watch.New(db, watch.Options{
		Interval: 200 * time.Millisecond,
		Quiet:    500 * time.Millisecond,
		Detector: watch.DataVersion,
		Logger:   logger,
	})
}
