// Command serpnav opens search-result pages in Chrome and navigates them
// from the keyboard: j/k move between results, h/l change page, Enter
// opens the selected result.
//
// Usage:
//
//	serpnav -url 'https://www.google.com/search?q=go'   # one page, stdout events
//	serpnav -config serpnav.yaml                        # pages and sinks from YAML
//	serpnav -config serpnav.yaml -db pages.db           # pages from SQLite, hot-reloaded
//	serpnav -dump saved.html                            # print the located results and exit
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/navkit/idgen"
	"github.com/hazyhaar/navkit/serpnav"
)

func main() {
	configPath := flag.String("config", "", "path to serpnav.yaml config file")
	singleURL := flag.String("url", "", "navigate a single URL (stdout sink)")
	dbPath := flag.String("db", "", "SQLite database holding the nav_pages table")
	dumpSrc := flag.String("dump", "", "print the results of a URL or saved HTML file and exit")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := checkSources(*configPath, *singleURL, *dbPath, *dumpSrc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, logger, *configPath, *singleURL, *dbPath, *dumpSrc)
	stop()
	if err != nil {
		logger.Error("serpnav: fatal", "error", err)
		os.Exit(1)
	}
}

var errNoSource = errors.New("usage: serpnav -url <url> | -config <file> [-db <file>] | -dump <url|file>")

// checkSources rejects a command line that names nothing to open.
func checkSources(configPath, singleURL, dbPath, dumpSrc string) error {
	if dumpSrc == "" && configPath == "" && singleURL == "" && dbPath == "" {
		return errNoSource
	}
	return nil
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, dbPath, dumpSrc string) error {
	if dumpSrc != "" {
		n, err := serpnav.Dump(ctx, dumpSrc, os.Stdout, logger)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		logger.Info("serpnav: dumped", "entries", n)
		return nil
	}

	cfg := serpnav.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = serpnav.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if singleURL != "" {
		cfg.Pages = append(cfg.Pages, serpnav.PageConfig{ID: idgen.New(), URL: singleURL})
	}

	nav := serpnav.New(cfg, logger, serpnav.BuildSinks(cfg.Sinks, logger)...)
	if err := nav.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer nav.Stop()

	if dbPath != "" {
		return runDB(ctx, logger, nav, cfg.Pages, dbPath)
	}

	<-ctx.Done()
	return nil
}

// runDB keeps the open pages in line with the nav_pages table until ctx is
// cancelled. Pages from the config file stay open alongside.
func runDB(ctx context.Context, logger *slog.Logger, nav *serpnav.Navigator, static []serpnav.PageConfig, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	// One connection keeps PRAGMA data_version readings comparable.
	db.SetMaxOpenConns(1)

	if err := serpnav.EnsurePageTable(ctx, db); err != nil {
		return err
	}

	reload := func(ctx context.Context) error {
		rows, err := serpnav.LoadPageTable(ctx, db)
		if err != nil {
			return err
		}
		pages := append(append([]serpnav.PageConfig(nil), static...), rows...)
		logger.Info("serpnav: page table loaded", "pages", len(pages))
		// A page that fails to open is retried on the next table change,
		// not on every poll.
		if err := nav.Sync(ctx, pages); err != nil {
			logger.Warn("serpnav: page sync incomplete", "error", err)
		}
		return nil
	}
	if err := reload(ctx); err != nil {
		return err
	}

	w := serpnav.WatchPageTable(db, logger)
	if err := w.Run(ctx, reload); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
