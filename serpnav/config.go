package serpnav

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/navkit/serpnav/internal/config"
	"github.com/hazyhaar/navkit/watch"
)

// Config is the top-level serpnav configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to navigate.
type PageConfig = config.PageConfig

// NavigationConfig tunes rescanning and the focus band.
type NavigationConfig = config.NavigationConfig

// SinkConfig defines a diagnostic event backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with defaults applied and no pages.
func DefaultConfig() *Config {
	return config.Default()
}

// PageTableSchema creates the nav_pages table.
const PageTableSchema = config.Schema

// EnsurePageTable creates the nav_pages table if it does not exist.
func EnsurePageTable(ctx context.Context, db *sql.DB) error {
	return config.EnsureSchema(ctx, db)
}

// LoadPageTable reads the active pages of the nav_pages table.
func LoadPageTable(ctx context.Context, db *sql.DB) ([]PageConfig, error) {
	rows, err := config.LoadPages(ctx, db)
	if err != nil {
		return nil, err
	}
	pages := make([]PageConfig, len(rows))
	for i, r := range rows {
		pages[i] = r.Page()
	}
	return pages, nil
}

// WatchPageTable returns a watcher that fires when nav_pages changes.
func WatchPageTable(db *sql.DB, logger *slog.Logger) *watch.Watcher {
	return config.WatchPages(db, logger)
}
