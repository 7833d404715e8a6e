package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scrollwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
page:
  id: home
  url: https://example.com
engine:
  debounce_window: 200ms
features:
  pinned:
    - id: hero
      fixed_selector: ".hero"
      spacer_selector: ".hero-spacer"
    - id: footer
      mode: fixed
      height_px: 320
  thresholds:
    - id: header
      activate_px: 300
      hysteresis_px: 60
  scrubs:
    - id: parallax
      start_px: 0
      end_px: 844
admin:
  listen: ":9801"
journal:
  path: /tmp/scrollwatch.db
sinks:
  - type: stdout
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Page.ID != "home" {
		t.Fatalf("page id: %q", cfg.Page.ID)
	}
	if cfg.Engine.DebounceWindow != 200*time.Millisecond {
		t.Fatalf("debounce window: %v", cfg.Engine.DebounceWindow)
	}
	if len(cfg.Features.Pinned) != 2 || cfg.Features.Pinned[0].Mode != "viewport" {
		t.Fatalf("pinned defaults: %+v", cfg.Features.Pinned)
	}
	if cfg.Features.Pinned[1].Mode != "fixed" || cfg.Features.Pinned[1].HeightPx != 320 {
		t.Fatalf("footer config: %+v", cfg.Features.Pinned[1])
	}
	if cfg.Admin.Listen != ":9801" {
		t.Fatalf("admin listen: %q", cfg.Admin.Listen)
	}
	if cfg.Journal.Retention != 7*24*time.Hour {
		t.Fatalf("journal retention default: %v", cfg.Journal.Retention)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Engine.DebounceWindow != 150*time.Millisecond {
		t.Fatalf("default window: %v", cfg.Engine.DebounceWindow)
	}
	if cfg.Engine.InitialWidth != 1280 || cfg.Engine.InitialHeight != 800 {
		t.Fatalf("default viewport: %vx%v", cfg.Engine.InitialWidth, cfg.Engine.InitialHeight)
	}
	if cfg.Engine.HysteresisFrac != 0.2 {
		t.Fatalf("default hysteresis fraction: %v", cfg.Engine.HysteresisFrac)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"pinned without id", `
features:
  pinned:
    - mode: fixed
      height_px: 100
`},
		{"unknown pinned mode", `
features:
  pinned:
    - id: hero
      mode: sticky
`},
		{"threshold without position", `
features:
  thresholds:
    - id: header
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := LoadConfigFile(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
