package serpnav

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hazyhaar/navkit/serpnav/internal/fetcher"
	"github.com/hazyhaar/navkit/serpnav/internal/htmldoc"
	"github.com/hazyhaar/navkit/serpnav/internal/locator"
)

// DumpEntry is one line of Dump output.
type DumpEntry struct {
	Index    int     `json:"index"`
	Href     string  `json:"href"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Top      float64 `json:"top"`
}

// Dump loads src (an http(s) URL or a saved HTML file), runs the result
// locator over the static document and writes the ResultSet to w as JSON
// lines. It returns the number of entries written.
func Dump(ctx context.Context, src string, w io.Writer, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	page, err := fetcher.New(fetcher.WithLogger(logger)).Load(ctx, src)
	if err != nil {
		return 0, err
	}
	if !page.Rendered {
		logger.Warn("serpnav: no result container in static HTML, the page likely needs a browser", "url", page.URL)
	}

	doc, err := htmldoc.Parse(bytes.NewReader(page.HTML), page.URL)
	if err != nil {
		return 0, fmt.Errorf("serpnav: parse %s: %w", page.URL, err)
	}
	scan := locator.New(locator.WithLogger(logger)).Locate(doc)
	if err := scan.Err(); err != nil {
		return 0, fmt.Errorf("serpnav: %s: %w", page.URL, err)
	}
	for _, f := range scan.Failures {
		logger.Warn("serpnav: pattern failed", "error", f)
	}

	enc := json.NewEncoder(w)
	for i, e := range scan.Set {
		line := DumpEntry{
			Index:    i,
			Href:     e.Href,
			Category: string(e.Category),
			Title:    strings.TrimSpace(e.Node.Text()),
			Top:      e.Rect.Top,
		}
		if err := enc.Encode(line); err != nil {
			return i, fmt.Errorf("serpnav: write: %w", err)
		}
	}
	return len(scan.Set), nil
}
