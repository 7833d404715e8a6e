package layout

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the declarative description of a page's scroll-linked
// features plus engine tuning.
type Config struct {
	Page     PageConfig    `yaml:"page"`
	Engine   EngineConfig  `yaml:"engine"`
	Features FeatureConfig `yaml:"features"`
	Admin    AdminConfig   `yaml:"admin"`
	Journal  JournalConfig `yaml:"journal"`
	Sinks    []SinkConfig  `yaml:"sinks"`
}

// PageConfig identifies the page under coordination.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// EngineConfig tunes the core. The debounce window and the hysteresis
// fraction are empirical knobs, not contracts; the defaults come from
// field debugging of toolbar-resize and header-flicker bugs.
type EngineConfig struct {
	// DebounceWindow coalesces recompute requests. Default: 150ms.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// InitialWidth/InitialHeight seed the viewport metric before the
	// first platform resize sample arrives. Defaults: 1280x800.
	InitialWidth  float64 `yaml:"initial_width"`
	InitialHeight float64 `yaml:"initial_height"`
	// HysteresisFrac sizes the hysteresis band of thresholds that do not
	// set hysteresis_px, as a fraction of the activation distance.
	// Default: 0.2.
	HysteresisFrac float64 `yaml:"hysteresis_frac"`
}

// FeatureConfig declares the page's scroll-linked features.
type FeatureConfig struct {
	Pinned     []PinnedConfig    `yaml:"pinned"`
	Thresholds []ThresholdConfig `yaml:"thresholds"`
	Scrubs     []ScrubConfig     `yaml:"scrubs"`
}

// PinnedConfig declares a fixed region paired with an in-flow spacer.
type PinnedConfig struct {
	ID             string  `yaml:"id"`
	FixedSelector  string  `yaml:"fixed_selector"`
	SpacerSelector string  `yaml:"spacer_selector"`
	Mode           string  `yaml:"mode"` // fixed | viewport
	HeightPx       float64 `yaml:"height_px"`
	Multiplier     float64 `yaml:"multiplier"`
}

// ThresholdConfig declares a collapse/expand toggle. The activation
// position comes from exactly one of: a selector (measured live), a
// viewport fraction, or an absolute pixel position.
type ThresholdConfig struct {
	ID           string  `yaml:"id"`
	Selector     string  `yaml:"selector"`
	ActivateVH   float64 `yaml:"activate_vh"` // fraction of stable height
	ActivatePx   float64 `yaml:"activate_px"`
	HysteresisPx float64 `yaml:"hysteresis_px"`
	// TargetSelector names the element the transition animates. Empty
	// means the measured Selector element.
	TargetSelector string `yaml:"target_selector"`
}

// ScrubConfig declares a continuous scroll-to-progress binding.
type ScrubConfig struct {
	ID       string  `yaml:"id"`
	Selector string  `yaml:"selector"`
	StartPx  float64 `yaml:"start_px"`
	EndPx    float64 `yaml:"end_px"`
	StartVH  float64 `yaml:"start_vh"`
	EndVH    float64 `yaml:"end_vh"`
	// TargetSelector names the element receiving the progress variable.
	// Empty means the measured Selector element.
	TargetSelector string `yaml:"target_selector"`
}

// AdminConfig controls the debug HTTP surface.
type AdminConfig struct {
	Listen string `yaml:"listen"` // empty disables
}

// JournalConfig controls the SQLite diagnostics journal.
type JournalConfig struct {
	Path      string        `yaml:"path"` // empty disables
	Retention time.Duration `yaml:"retention"`
}

// SinkConfig defines an output backend for coordinator events.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("layout: parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.DebounceWindow <= 0 {
		c.Engine.DebounceWindow = 150 * time.Millisecond
	}
	if c.Engine.InitialWidth <= 0 {
		c.Engine.InitialWidth = 1280
	}
	if c.Engine.InitialHeight <= 0 {
		c.Engine.InitialHeight = 800
	}
	if c.Engine.HysteresisFrac <= 0 {
		c.Engine.HysteresisFrac = 0.2
	}
	if c.Journal.Retention <= 0 {
		c.Journal.Retention = 7 * 24 * time.Hour
	}
	for i := range c.Features.Pinned {
		if c.Features.Pinned[i].Mode == "" {
			c.Features.Pinned[i].Mode = "viewport"
		}
	}
}

func (c *Config) validate() error {
	for _, p := range c.Features.Pinned {
		if p.ID == "" {
			return fmt.Errorf("layout: pinned region without id")
		}
		switch p.Mode {
		case "fixed", "viewport":
		default:
			return fmt.Errorf("layout: pinned %q: unknown mode %q", p.ID, p.Mode)
		}
	}
	for _, t := range c.Features.Thresholds {
		if t.ID == "" {
			return fmt.Errorf("layout: threshold without id")
		}
		if t.Selector == "" && t.ActivateVH <= 0 && t.ActivatePx <= 0 {
			return fmt.Errorf("layout: threshold %q: no activation position", t.ID)
		}
	}
	for _, s := range c.Features.Scrubs {
		if s.ID == "" {
			return fmt.Errorf("layout: scrub without id")
		}
	}
	return nil
}
