package config

import (
	"time"
)

// Config represents the complete webprobe configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Healing HealingConfig `yaml:"healing"`
	Quality QualityConfig `yaml:"quality"`
	Runner  RunnerConfig  `yaml:"runner"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Meta    MetaConfig    `yaml:"meta"`
}

// BrowserConfig holds Chrome session configuration.
type BrowserConfig struct {
	Headless     bool   `yaml:"headless"`
	ChromePath   string `yaml:"chrome_path,omitempty"` // auto-detected when empty
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	// AttachPort, when non-zero, connects to a running Chrome's remote
	// debugging port instead of launching a new instance.
	AttachPort int `yaml:"attach_port,omitempty"`

	StepTimeout     time.Duration `yaml:"step_timeout"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
}

// HealingConfig holds auto-healing engine configuration. Healing is opt-in:
// the engine stays disabled unless a run explicitly enables it, so genuine
// regressions are not masked in default mode.
type HealingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// QualityConfig holds scoring thresholds and weights. The defaults are
// carried over from the historical scoring model; changing them silently
// changes all historical quality scores, so treat overrides with care.
type QualityConfig struct {
	// PerformanceThresholds maps a timing metric name to its budget. A
	// measurement meeting the budget exactly scores 0 for that metric.
	PerformanceThresholds map[string]float64 `yaml:"performance_thresholds"`
	// PerformanceWeights maps a timing metric name to its weight in the
	// performance category score.
	PerformanceWeights map[string]float64 `yaml:"performance_weights"`
	// CategoryWeights maps a category (performance, accessibility, seo,
	// functionality) to its weight in the overall score.
	CategoryWeights map[string]float64 `yaml:"category_weights"`
}

// RunnerConfig holds test orchestration configuration.
type RunnerConfig struct {
	// RunTimeout is the wall-clock budget for a whole TestRun. When it
	// expires, in-flight step waits are aborted and the run is marked
	// failed with a timeout failure.
	RunTimeout  time.Duration `yaml:"run_timeout"`
	ScenarioDir string        `yaml:"scenario_dir,omitempty"`
}

// ServerConfig holds HTTP facade configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig holds result store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MetaConfig holds metadata about the configuration.
type MetaConfig struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// DefaultConfig returns a new config with the historical defaults.
func DefaultConfig() *Config {
	now := time.Now()
	return &Config{
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			StepTimeout:     10 * time.Second,
			PageLoadTimeout: 30 * time.Second,
		},
		Healing: HealingConfig{
			Enabled:     false,
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
			WaitTimeout: 10 * time.Second,
		},
		Quality: QualityConfig{
			PerformanceThresholds: map[string]float64{
				"page_load_time":           3.0,
				"first_contentful_paint":   1.8,
				"largest_contentful_paint": 2.5,
				"cumulative_layout_shift":  0.1,
			},
			PerformanceWeights: map[string]float64{
				"page_load_time":           0.3,
				"first_contentful_paint":   0.25,
				"largest_contentful_paint": 0.25,
				"cumulative_layout_shift":  0.2,
			},
			CategoryWeights: map[string]float64{
				"performance":   0.3,
				"accessibility": 0.25,
				"seo":           0.2,
				"functionality": 0.25,
			},
		},
		Runner: RunnerConfig{
			RunTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8001,
		},
		Store: StoreConfig{
			Path: ".webprobe/webprobe.db",
		},
		Meta: MetaConfig{
			Version:   "1.0.0",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Healing.MaxAttempts < 1 {
		return NewValidationError("healing.max_attempts must be at least 1")
	}
	if c.Healing.RetryDelay < 0 {
		return NewValidationError("healing.retry_delay must not be negative")
	}
	if c.Browser.StepTimeout <= 0 {
		return NewValidationError("browser.step_timeout must be positive")
	}
	if c.Runner.RunTimeout <= 0 {
		return NewValidationError("runner.run_timeout must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return NewValidationError("server.port is out of range")
	}
	if c.Store.Path == "" {
		return NewValidationError("store.path must not be empty")
	}
	for metric, w := range c.Quality.PerformanceWeights {
		if w < 0 {
			return NewValidationError("quality.performance_weights." + metric + " must not be negative")
		}
	}
	for category, w := range c.Quality.CategoryWeights {
		switch category {
		case "performance", "accessibility", "seo", "functionality":
		default:
			return NewValidationError("quality.category_weights references unknown category: " + category)
		}
		if w < 0 {
			return NewValidationError("quality.category_weights." + category + " must not be negative")
		}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
