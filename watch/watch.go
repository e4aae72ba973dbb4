// Package watch polls a SQLite database for a change token and runs a
// reload once the token has moved and stayed put for a quiet period.
//
// serpnav uses it to hot-reload the nav_pages table: a daemon opens a
// Session for every page inserted while it runs.
//
//	w := watch.New(db, watch.Options{Interval: 200 * time.Millisecond, Quiet: 500 * time.Millisecond})
//	go w.Run(ctx, func(ctx context.Context) error { return reconcile(ctx) })
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Detector reads a change token. Two different values mean the data
// changed in between.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval between two token reads. Default: 1s.
	Interval time.Duration
	// Quiet is how long the token must stay unchanged before the reload
	// runs. 0 reloads on the first read that sees a new token.
	Quiet time.Duration
	// Detector defaults to DataVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = DataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher runs reloads on change. Version and Reloads are safe to call
// from any goroutine.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64
	reloads atomic.Int64
}

// New creates a Watcher. Call Run to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Version returns the token of the last successful reload (or the seed).
func (w *Watcher) Version() int64 { return w.version.Load() }

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Run polls until ctx is cancelled and returns ctx.Err(). A failed reload
// leaves the version untouched, so the next poll tries again.
func (w *Watcher) Run(ctx context.Context, reload func(context.Context) error) error {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var quiet *time.Timer
	var quietC <-chan time.Time
	stopQuiet := func() {
		if quiet != nil {
			quiet.Stop()
		}
		quiet, quietC = nil, nil
	}
	defer stopQuiet()

	pending := int64(-1)
	for {
		select {
		case <-ctx.Done():
			log.Debug("watch: stopped")
			return ctx.Err()

		case <-ticker.C:
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() {
				pending = -1
				stopQuiet()
				continue
			}
			if cur == pending {
				continue
			}
			pending = cur
			if w.opts.Quiet <= 0 {
				pending = w.fire(ctx, reload, cur)
				continue
			}
			stopQuiet()
			quiet = time.NewTimer(w.opts.Quiet)
			quietC = quiet.C
			log.Debug("watch: change detected", "pending_version", cur)

		case <-quietC:
			quiet, quietC = nil, nil
			pending = w.fire(ctx, reload, pending)
		}
	}
}

// fire runs reload and returns the new pending token: -1 either way, so a
// failure is detected again on the next poll.
func (w *Watcher) fire(ctx context.Context, reload func(context.Context) error, ver int64) int64 {
	start := time.Now()
	if err := reload(ctx); err != nil {
		w.opts.Logger.Error("watch: reload failed", "version", ver, "error", err)
		return -1
	}
	w.version.Store(ver)
	w.reloads.Add(1)
	w.opts.Logger.Info("watch: reloaded", "version", ver, "duration", time.Since(start))
	return -1
}

// DataVersion reads PRAGMA data_version, which moves whenever another
// connection commits to the same database file.
func DataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// UserVersion reads PRAGMA user_version, bumped explicitly by writers.
func UserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// MaxColumn returns a Detector reading MAX(column) of table, for tables
// stamped with an updated_at column. Identifiers are quoted.
func MaxColumn(table, column string) Detector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
