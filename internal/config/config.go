package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath      string `envconfig:"DB_PATH" default:"insight.db"`

	// Auth for the management API
	AuthMode  string `envconfig:"AUTH_MODE" default:"api-key"` // "api-key", "jwt", "none"
	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Session analysis
	ErrorThreshold    int           `envconfig:"ERROR_THRESHOLD" default:"2"`
	SlowActionCutoff  time.Duration `envconfig:"SLOW_ACTION_CUTOFF" default:"5m"`
	AnalysisWorkers   int           `envconfig:"ANALYSIS_WORKERS" default:"4"`
	AnalysisQueueSize int           `envconfig:"ANALYSIS_QUEUE_SIZE" default:"64"`

	// Research synthesis
	ReuseThreshold   float64       `envconfig:"REUSE_THRESHOLD" default:"0.6"`
	DedupThreshold   float64       `envconfig:"DEDUP_THRESHOLD" default:"0.7"`
	PerSourceTimeout time.Duration `envconfig:"PER_SOURCE_TIMEOUT" default:"10s"`
	OverallTimeout   time.Duration `envconfig:"OVERALL_TIMEOUT" default:"25s"`
	SourcesFile      string        `envconfig:"SOURCES_FILE"`

	// Knowledge store
	LearningRate  float64       `envconfig:"LEARNING_RATE" default:"0.2"`
	DecayHalfLife time.Duration `envconfig:"DECAY_HALF_LIFE" default:"720h"` // 30 days

	// External synthesis capability (optional — core degrades to raw-result
	// fallback when unset)
	SynthBaseURL string        `envconfig:"SYNTH_BASE_URL"`
	SynthAPIKey  string        `envconfig:"SYNTH_API_KEY"`
	SynthModel   string        `envconfig:"SYNTH_MODEL" default:"gpt-4-turbo-preview"`
	SynthTimeout time.Duration `envconfig:"SYNTH_TIMEOUT" default:"30s"`

	// Issue tracker source (optional token raises rate limits)
	GitHubToken string `envconfig:"GITHUB_TOKEN"`

	// Reflection
	ReflectionInterval time.Duration `envconfig:"REFLECTION_INTERVAL" default:"1h"`
	ReflectionWindow   time.Duration `envconfig:"REFLECTION_WINDOW" default:"24h"`
	WeakSuccessRate    float64       `envconfig:"WEAK_SUCCESS_RATE" default:"0.75"`
	WeakQuality        float64       `envconfig:"WEAK_QUALITY" default:"0.7"`

	// Reporting
	ReportTopN        int     `envconfig:"REPORT_TOP_N" default:"5"`
	ImplementedTarget float64 `envconfig:"IMPLEMENTED_TARGET" default:"5"`

	// Slack report delivery (optional)
	SlackBotToken      string `envconfig:"SLACK_BOT_TOKEN"`
	SlackReportChannel string `envconfig:"SLACK_REPORT_CHANNEL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("INSIGHT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks threshold ranges that would otherwise fail silently at runtime.
func (c *Config) Validate() error {
	if c.ReuseThreshold < 0 || c.ReuseThreshold > 1 {
		return fmt.Errorf("REUSE_THRESHOLD must be in [0,1], got %v", c.ReuseThreshold)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("LEARNING_RATE must be in (0,1], got %v", c.LearningRate)
	}
	if c.AuthMode == "api-key" && c.APIKey == "" {
		return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
	}
	if c.AuthMode == "jwt" && c.JWTSecret == "" {
		return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
	}
	return nil
}

// SlackEnabled returns true if Slack report delivery is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackReportChannel != ""
}

// SynthEnabled returns true if the external synthesis capability is configured.
func (c *Config) SynthEnabled() bool {
	return c.SynthAPIKey != ""
}

// SourceSpec configures one external knowledge source.
type SourceSpec struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"` // "forum", "tracker", "papers", "corpus"
	Endpoint string `yaml:"endpoint,omitempty"`
	Site     string `yaml:"site,omitempty"`
	Limit    int    `yaml:"limit,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// EnabledSources filters specs down to the enabled ones.
func EnabledSources(specs []SourceSpec) []SourceSpec {
	out := make([]SourceSpec, 0, len(specs))
	for _, s := range specs {
		if s.Enabled == nil || *s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// DefaultSources returns the built-in source registry used when no
// sources file is configured.
func DefaultSources() []SourceSpec {
	return []SourceSpec{
		{ID: "stackoverflow", Kind: "forum", Site: "stackoverflow", Limit: 5},
		{ID: "github-issues", Kind: "tracker", Limit: 5},
		{ID: "arxiv", Kind: "papers", Limit: 3},
		{ID: "best-practices", Kind: "corpus", Limit: 5},
	}
}

// LoadSources reads the YAML source registry file.
func LoadSources(path string) ([]SourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	var doc struct {
		Sources []SourceSpec `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	for i, s := range doc.Sources {
		if s.ID == "" {
			return nil, fmt.Errorf("sources[%d]: missing id", i)
		}
		if s.Kind == "" {
			return nil, fmt.Errorf("source %q: missing kind", s.ID)
		}
	}
	return doc.Sources, nil
}
