// Package fetcher acquires search-result HTML without a browser, for the
// offline dump mode. A single HTTP GET (or a file read) that produces a
// Page the in-memory document can parse.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxBody caps reads to prevent runaway downloads.
const maxBody = 10 << 20

// Page is acquired HTML plus where it came from.
type Page struct {
	// URL is the final address after redirects, or a file:// URL.
	URL        string
	HTML       []byte
	StatusCode int
	// Rendered reports whether the HTML already carries a result
	// container. A page without one needs a live browser.
	Rendered bool
}

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client *http.Client
	ua     string
	lang   string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLanguage sets the Accept-Language header.
func WithLanguage(lang string) Option {
	return func(f *Fetcher) { f.lang = lang }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		lang:   "en-US,en;q=0.5",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Load fetches src when it is an http(s) URL and reads it from disk
// otherwise.
func (f *Fetcher) Load(ctx context.Context, src string) (*Page, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return f.Fetch(ctx, src)
	}
	return ReadFile(src)
}

// Fetch GETs a URL. Non-2xx responses are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.lang)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetcher: %s: status %d", pageURL, resp.StatusCode)
	}

	p := &Page{
		URL:        resp.Request.URL.String(),
		HTML:       body,
		StatusCode: resp.StatusCode,
		Rendered:   HasResultContainer(body),
	}
	f.logger.Debug("fetcher: fetched",
		"url", p.URL, "status", resp.StatusCode,
		"size", len(body), "rendered", p.Rendered)
	return p, nil
}

// ReadFile loads a saved page from disk.
func ReadFile(path string) (*Page, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read file: %w", err)
	}
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Page{
		URL:        "file://" + filepath.ToSlash(abs),
		HTML:       body,
		StatusCode: http.StatusOK,
		Rendered:   HasResultContainer(body),
	}, nil
}
