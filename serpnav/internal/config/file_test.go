package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serpnav.yaml")
	data := `
browser:
  remote: ws://127.0.0.1:9222/devtools/browser/abc
  headless: true
  stealth: false
pages:
  - id: golang
    url: https://www.google.com/search?q=golang
  - url: https://www.google.com/search?q=rod
navigation:
  debounce: 400ms
  retry_max: 5
sinks:
  - type: stdout
  - type: webhook
    url: http://127.0.0.1:8080/events
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Browser.Headless || cfg.Browser.StealthEnabled() {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if len(cfg.Pages) != 2 || cfg.Pages[0].ID != "golang" || cfg.Pages[1].ID != "page-2" {
		t.Errorf("pages: %+v", cfg.Pages)
	}
	nav := cfg.Navigation
	if nav.Debounce != 400*time.Millisecond || nav.RetryMax != 5 {
		t.Errorf("explicit values lost: %+v", nav)
	}
	if nav.RetryBase != 500*time.Millisecond || nav.Settle != time.Second || nav.RevealMargin != 100 {
		t.Errorf("defaults not applied: %+v", nav)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].URL == "" {
		t.Errorf("sinks: %+v", cfg.Sinks)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Browser.StealthEnabled() || cfg.Browser.Headless {
		t.Errorf("browser defaults: %+v", cfg.Browser)
	}
	if cfg.Navigation.Debounce != 800*time.Millisecond || cfg.Navigation.RetryMax != 3 {
		t.Errorf("navigation defaults: %+v", cfg.Navigation)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":         "pages: [",
		"no url":         "pages: [{id: a}]",
		"duplicate id":   "pages: [{id: a, url: 'https://x'}, {id: a, url: 'https://y'}]",
		"webhook no url": "sinks: [{type: webhook}]",
		"unknown sink":   "sinks: [{type: nats}]",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.HasPrefix(err.Error(), "config: ") {
				t.Errorf("error not prefixed: %v", err)
			}
		})
	}
}
