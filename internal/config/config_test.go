package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Healing.Enabled {
		t.Error("healing must be disabled by default")
	}
	if cfg.Healing.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Healing.MaxAttempts)
	}
	if cfg.Healing.RetryDelay != 2*time.Second {
		t.Errorf("retry delay = %v, want 2s", cfg.Healing.RetryDelay)
	}
	if cfg.Healing.WaitTimeout != 10*time.Second {
		t.Errorf("wait timeout = %v, want 10s", cfg.Healing.WaitTimeout)
	}

	thresholds := cfg.Quality.PerformanceThresholds
	wantThresholds := map[string]float64{
		"page_load_time":           3.0,
		"first_contentful_paint":   1.8,
		"largest_contentful_paint": 2.5,
		"cumulative_layout_shift":  0.1,
	}
	for name, want := range wantThresholds {
		if got := thresholds[name]; got != want {
			t.Errorf("threshold %s = %v, want %v", name, got, want)
		}
	}

	weights := cfg.Quality.CategoryWeights
	wantWeights := map[string]float64{
		"performance":   0.3,
		"accessibility": 0.25,
		"seo":           0.2,
		"functionality": 0.25,
	}
	for name, want := range wantWeights {
		if got := weights[name]; got != want {
			t.Errorf("category weight %s = %v, want %v", name, got, want)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Healing.MaxAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Healing.RetryDelay = -time.Second }},
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"zero run timeout", func(c *Config) { c.Runner.RunTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoaderDefaultsWhenUninitialized(t *testing.T) {
	loader := NewLoader(t.TempDir())
	if loader.IsInitialized() {
		t.Fatal("fresh dir must not look initialized")
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Healing.MaxAttempts != 3 {
		t.Errorf("defaults not applied: %+v", cfg.Healing)
	}
}

func TestLoaderReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ".webprobe")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "healing:\n  enabled: true\n  max_attempts: 5\nserver:\n  port: 9000\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(dir)
	if !loader.IsInitialized() {
		t.Fatal("dir with config must look initialized")
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Healing.Enabled || cfg.Healing.MaxAttempts != 5 {
		t.Errorf("file values not applied: %+v", cfg.Healing)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	// Untouched fields keep defaults.
	if cfg.Healing.RetryDelay != 2*time.Second {
		t.Errorf("retry delay lost its default: %v", cfg.Healing.RetryDelay)
	}
}

func TestLoaderFindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".webprobe"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".webprobe", "config.yaml"), []byte("healing:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(nested).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Healing.Enabled {
		t.Error("upward search did not find the config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEBPROBE_HEALING_ENABLED", "true")
	t.Setenv("WEBPROBE_SERVER_PORT", "8123")
	t.Setenv("WEBPROBE_HEADLESS", "false")

	cfg, err := NewLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Healing.Enabled {
		t.Error("WEBPROBE_HEALING_ENABLED not applied")
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.Browser.Headless {
		t.Error("WEBPROBE_HEADLESS=false not applied")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	cfg := DefaultConfig()
	cfg.Healing.Enabled = true
	if err := loader.Save(cfg, loader.GetConfigPath()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Healing.Enabled {
		t.Error("saved value lost in round trip")
	}
}
