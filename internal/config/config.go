package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type BudgetConfig struct {
	MaxTasks             int  `toml:"max_tasks"`
	MaxTimeMinutes       int  `toml:"max_time_minutes"`
	MaxConcurrentTasks   int  `toml:"max_concurrent_tasks"`
	MaxHypothesesPerTask int  `toml:"max_hypotheses_per_task"`
	AllowSaturationStop  bool `toml:"allow_saturation_stop"`
}

type SearchConfig struct {
	MaxPhases            int `toml:"max_phases"`
	ResultLimit          int `toml:"result_limit"`
	SourceTimeoutSeconds int `toml:"source_timeout_seconds"`
	InitialBackoffMillis int `toml:"initial_backoff_millis"`
	MaxBackoffMillis     int `toml:"max_backoff_millis"`
}

type OracleConfig struct {
	TimeoutSeconds       int `toml:"timeout_seconds"`
	AssessTimeoutSeconds int `toml:"assess_timeout_seconds"`
}

type ConcurrencyConfig struct {
	GlobalSourceCalls    int     `toml:"global_source_calls"`
	SourceCallsPerSecond float64 `toml:"source_calls_per_second"`
}

type FeedConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type SourcesConfig struct {
	RSSFeeds  []FeedConfig `toml:"rss_feeds"`
	EnableHN  bool         `toml:"enable_hackernews"`
	EnableWeb bool         `toml:"enable_web"`
}

// Prompts are the oracle prompt templates. Empty fields fall back to the
// compiled-in defaults.
type Prompts struct {
	Decompose  string `toml:"decompose"`
	Hypotheses string `toml:"hypotheses"`
	Query      string `toml:"query"`
	Assess     string `toml:"assess"`
	Entities   string `toml:"entities"`
	Report     string `toml:"report"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Budget      BudgetConfig      `toml:"budget"`
	Search      SearchConfig      `toml:"search"`
	Oracle      OracleConfig      `toml:"oracle"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Sources     SourcesConfig     `toml:"sources"`
	Prompts     Prompts           `toml:"prompts"`
}

// Default returns a runnable configuration. Loaded files override it
// field-by-field.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"},
		Budget: BudgetConfig{
			MaxTasks:             12,
			MaxTimeMinutes:       30,
			MaxConcurrentTasks:   3,
			MaxHypothesesPerTask: 10,
			AllowSaturationStop:  true,
		},
		Search: SearchConfig{
			MaxPhases:            3,
			ResultLimit:          10,
			SourceTimeoutSeconds: 30,
			InitialBackoffMillis: 1000,
			MaxBackoffMillis:     8000,
		},
		Oracle: OracleConfig{TimeoutSeconds: 60, AssessTimeoutSeconds: 45},
		Concurrency: ConcurrencyConfig{
			GlobalSourceCalls:    8,
			SourceCallsPerSecond: 4,
		},
		Sources: SourcesConfig{EnableHN: true, EnableWeb: true},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}
