package config

// Config holds pulse configuration.
// Stored at: ./config.yaml or ~/.pulse/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Scraper      ScraperCfg                `mapstructure:"scraper" yaml:"scraper"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Database     DatabaseCfg               `mapstructure:"database" yaml:"database"`
}

// LLMProviderCfg configures a generative-model provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "gemini", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// ScraperCfg configures the remote scrape-job provider.
type ScraperCfg struct {
	Token   string `mapstructure:"token" yaml:"token"`       // API token (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Override for tests / self-hosted proxies
	// StartTimeoutSeconds bounds the run-start call.
	StartTimeoutSeconds int `mapstructure:"start_timeout_seconds" yaml:"start_timeout_seconds"`
	// PollIntervalSeconds is the fixed interval between run status polls.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	// WaitBudgetSeconds is the overall budget for a run to reach a terminal status.
	WaitBudgetSeconds int `mapstructure:"wait_budget_seconds" yaml:"wait_budget_seconds"`
}

// PipelineCfg configures the task runner and classifier.
type PipelineCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"` // Default provider name
	MaxWorkers  int    `mapstructure:"max_workers" yaml:"max_workers"`   // Worker pool size
	QueueSize   int    `mapstructure:"queue_size" yaml:"queue_size"`     // Task queue depth (backpressure bound)
	BatchSize   int    `mapstructure:"batch_size" yaml:"batch_size"`     // Records per classifier call
	MaxComments int    `mapstructure:"max_comments" yaml:"max_comments"` // Cap passed to the comment scraper
	// StaleAfterMinutes: processing tasks older than this are failed by the sweep.
	StaleAfterMinutes int `mapstructure:"stale_after_minutes" yaml:"stale_after_minutes"`
	// SweepSchedule is a cron spec for the recurring staleness sweep.
	SweepSchedule string `mapstructure:"sweep_schedule" yaml:"sweep_schedule"`
}

// DatabaseCfg holds Postgres connection and container configuration.
type DatabaseCfg struct {
	// DSN overrides the managed container; when set, pulse connects directly.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
	// ContainerName is the Docker container name (default: pulse-postgres)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: postgres:16-alpine)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 5433)
	Port string `mapstructure:"port" yaml:"port"`
	// Password for the managed container's postgres user.
	Password string `mapstructure:"password" yaml:"password"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.5-flash",
				APIKey:    "${GOOGLE_API_KEY}",
				RateLimit: 60.0,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60.0,
				Enabled:   false,
			},
		},
		Scraper: ScraperCfg{
			Token:               "${APIFY_TOKEN}",
			StartTimeoutSeconds: 30,
			PollIntervalSeconds: 5,
			WaitBudgetSeconds:   480,
		},
		Pipeline: PipelineCfg{
			LLMProvider:       "gemini",
			MaxWorkers:        4,
			QueueSize:         64,
			BatchSize:         50,
			MaxComments:       20,
			StaleAfterMinutes: 60,
			SweepSchedule:     "@every 10m",
		},
		Database: DatabaseCfg{
			ContainerName: "pulse-postgres",
			Image:         "postgres:16-alpine",
			Port:          "5433",
			Password:      "pulse",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
