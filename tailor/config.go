package tailor

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config holds all tailor configuration.
type Config struct {
	DBPath       string          `yaml:"db_path"`
	ImportDir    string          `yaml:"import_dir"`
	PlannerRoute string          `yaml:"planner_route"`
	TraceSQL     bool            `yaml:"trace_sql"` // open the store through the tracing driver
	Browser      BrowserConfig   `yaml:"browser"`
	Analysis     AnalysisConfig  `yaml:"analysis"`
	Advisor      AdvisorConfig   `yaml:"advisor"`
	Importer     ImporterConfig  `yaml:"importer"`
	Retention    RetentionConfig `yaml:"retention"`
}

// BrowserConfig controls the roddoc runtime used for live pages. Headless is
// a pointer so an absent YAML key keeps the browser default (headless on).
type BrowserConfig struct {
	RemoteURL  string        `yaml:"remote_url"` // attach to an existing browser instead of launching
	Headless   *bool         `yaml:"headless"`
	Stealth    bool          `yaml:"stealth"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// AnalysisConfig bounds the inspector's output.
type AnalysisConfig struct {
	ExcerptChars  int `yaml:"excerpt_chars"`
	MaxNavLinks   int `yaml:"max_nav_links"`
	MaxStructural int `yaml:"max_structural"`
	ListLimit     int `yaml:"list_limit"`
}

// AdvisorConfig carries the heuristic battery's thresholds.
type AdvisorConfig struct {
	SmallFontPx    float64 `yaml:"small_font_px"`
	MinTextChars   int     `yaml:"min_text_chars"`
	SpacingPx      float64 `yaml:"spacing_px"`
	LongTextChars  int     `yaml:"long_text_chars"`
	MaxSuggestions int     `yaml:"max_suggestions"`
}

// ImporterConfig controls the template drop-folder pipeline.
type ImporterConfig struct {
	Visibility   time.Duration `yaml:"visibility"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	MaxFileBytes int64         `yaml:"max_file_bytes"`
}

// RetentionConfig controls business event log cleanup.
type RetentionConfig struct {
	EventLogsDays int `yaml:"event_logs_days"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "domtailor.db"
	}
	if c.PlannerRoute == "" {
		c.PlannerRoute = "planner"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Analysis.ExcerptChars <= 0 {
		c.Analysis.ExcerptChars = 100
	}
	if c.Analysis.MaxNavLinks <= 0 {
		c.Analysis.MaxNavLinks = 20
	}
	if c.Analysis.MaxStructural <= 0 {
		c.Analysis.MaxStructural = 100
	}
	if c.Analysis.ListLimit <= 0 {
		c.Analysis.ListLimit = 50
	}
	if c.Advisor.SmallFontPx <= 0 {
		c.Advisor.SmallFontPx = 12
	}
	if c.Advisor.MinTextChars <= 0 {
		c.Advisor.MinTextChars = 10
	}
	if c.Advisor.SpacingPx <= 0 {
		c.Advisor.SpacingPx = 5
	}
	if c.Advisor.LongTextChars <= 0 {
		c.Advisor.LongTextChars = 50
	}
	if c.Advisor.MaxSuggestions <= 0 {
		c.Advisor.MaxSuggestions = 10
	}
	if c.Importer.Visibility <= 0 {
		c.Importer.Visibility = 30 * time.Second
	}
	if c.Importer.PollInterval <= 0 {
		c.Importer.PollInterval = 2 * time.Second
	}
	if c.Importer.MaxAttempts <= 0 {
		c.Importer.MaxAttempts = 3
	}
	if c.Importer.MaxFileBytes <= 0 {
		c.Importer.MaxFileBytes = 1 << 20
	}
	if c.Retention.EventLogsDays < 0 {
		c.Retention.EventLogsDays = 0
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DBPath, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	return c.Advisor.Validate()
}

// Validate validates the inspector bounds.
func (c *AnalysisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ExcerptChars, validation.Min(10), validation.Max(1000)),
		validation.Field(&c.MaxStructural, validation.Min(1), validation.Max(1000)),
	)
}

// Validate validates the advisor thresholds.
func (c *AdvisorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSuggestions, validation.Min(1), validation.Max(50)),
		validation.Field(&c.SmallFontPx, validation.Min(1.0), validation.Max(100.0)),
	)
}

// LoadConfigFile reads a YAML config file, expanding ${ENV} references.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
