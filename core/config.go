package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the collection agent.
type Config struct {
	// Provider Configuration
	MCPBaseURL           string // Base URL of the Fi-MCP data provider
	Subject              string // Phone number identifying the data subject
	AllowSelfSignedCerts bool

	// Collection Configuration
	CollectionInterval time.Duration // Time between scheduled collection runs
	FetchDelay         time.Duration // Pause between per-category fetches
	HTTPTimeout        time.Duration // Per-request timeout against the provider
	StopTimeout        time.Duration // Bound on waiting for the scheduler loop to exit

	// Analysis Trigger Tuning (overridable via tuning.yaml)
	FreshnessWindow   time.Duration // Max age of last analysis before a new one is due
	RecencyWindow     time.Duration // Records newer than this count as fresh data
	TriggerQuotaCost  int           // Quota units consumed by a trigger check
	AnalysisQuotaCost int           // Quota units consumed by insight generation

	// Quota Limits
	QuotaDailyLimit  int
	QuotaHourlyLimit int
	QuotaStatePath   string // JSON file backing the quota ledger

	// OpenAI Configuration
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string // Optional override, e.g. a local inference server
	AITimeout     time.Duration
	AIMaxTokens   int

	// Storage Configuration
	DatabasePath  string
	MigrationsDir string

	// Ops Surface Configuration
	OpsPassword string
	Port        int

	// Logging Configuration
	LogFilePath   string
	IsDevelopment bool
}

// TuningFile is the optional YAML overlay for analysis trigger tuning.
// Only non-zero fields override the environment-derived values.
type TuningFile struct {
	FreshnessWindowHours int `yaml:"freshness_window_hours"`
	RecencyWindowMinutes int `yaml:"recency_window_minutes"`
	TriggerQuotaCost     int `yaml:"trigger_quota_cost"`
	AnalysisQuotaCost    int `yaml:"analysis_quota_cost"`
	QuotaDailyLimit      int `yaml:"quota_daily_limit"`
	QuotaHourlyLimit     int `yaml:"quota_hourly_limit"`
}

// DefaultSubject is the sandbox subject used when SUBJECT is not set.
// The provider's test directory serves deterministic fixtures for it.
const DefaultSubject = "2222222222"

// LoadConfig loads configuration from environment variables with defaults
// sized for the provider sandbox. Only MCP_BASE_URL and OPS_PWD are required.
func LoadConfig() (*Config, error) {
	mcpBaseURL := os.Getenv("MCP_BASE_URL")
	if mcpBaseURL == "" {
		return nil, ErrMissingConfig("MCP_BASE_URL")
	}

	opsPassword := os.Getenv("OPS_PWD")
	if opsPassword == "" {
		return nil, ErrMissingConfig("OPS_PWD")
	}

	cfg := &Config{
		MCPBaseURL:           mcpBaseURL,
		Subject:              GetEnvOrDefault("SUBJECT", DefaultSubject),
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		// 60-minute interval matches the provider's data refresh cadence.
		CollectionInterval: time.Duration(ParseIntEnv("COLLECTION_INTERVAL_MINUTES", 60)) * time.Minute,
		FetchDelay:         time.Duration(ParseIntEnv("FETCH_DELAY_SECONDS", 1)) * time.Second,
		HTTPTimeout:        ParseDurationEnv("HTTP_TIMEOUT", 10),
		StopTimeout:        ParseDurationEnv("STOP_TIMEOUT", 5),

		FreshnessWindow:   time.Duration(ParseIntEnv("FRESHNESS_WINDOW_HOURS", 2)) * time.Hour,
		RecencyWindow:     time.Duration(ParseIntEnv("RECENCY_WINDOW_MINUTES", 60)) * time.Minute,
		TriggerQuotaCost:  ParseIntEnv("TRIGGER_QUOTA_COST", 3),
		AnalysisQuotaCost: ParseIntEnv("ANALYSIS_QUOTA_COST", 5),

		QuotaDailyLimit:  ParseIntEnv("QUOTA_DAILY_LIMIT", 30),
		QuotaHourlyLimit: ParseIntEnv("QUOTA_HOURLY_LIMIT", 5),
		QuotaStatePath:   GetEnvOrDefault("QUOTA_STATE_PATH", "./quota_state.json"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   GetEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		AITimeout:     ParseDurationEnv("AI_TIMEOUT", 60),
		AIMaxTokens:   ParseIntEnv("AI_MAX_TOKENS", 600),

		DatabasePath:  GetEnvOrDefault("DATABASE_PATH", "./financial_agent.db"),
		MigrationsDir: GetEnvOrDefault("MIGRATIONS_DIR", "./db/migrations"),

		OpsPassword: opsPassword,
		Port:        ParseIntEnv("PORT", 3000),

		LogFilePath:   GetEnvOrDefault("LOG_FILE", "./logs/agent.log"),
		IsDevelopment: ParseBoolEnv("DEV_MODE", false),
	}

	if cfg.CollectionInterval < time.Minute {
		return nil, fmt.Errorf("COLLECTION_INTERVAL_MINUTES must be at least 1, got %s", cfg.CollectionInterval)
	}
	if cfg.TriggerQuotaCost < 0 || cfg.AnalysisQuotaCost < 0 {
		return nil, fmt.Errorf("quota costs must be non-negative")
	}

	if path := GetEnvOrDefault("TUNING_FILE", "./tuning.yaml"); path != "" {
		if err := cfg.applyTuningFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyTuningFile overlays the optional YAML tuning file onto the config.
// A missing file is not an error; a malformed one is.
func (c *Config) applyTuningFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}

	var tuning TuningFile
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	if tuning.FreshnessWindowHours > 0 {
		c.FreshnessWindow = time.Duration(tuning.FreshnessWindowHours) * time.Hour
	}
	if tuning.RecencyWindowMinutes > 0 {
		c.RecencyWindow = time.Duration(tuning.RecencyWindowMinutes) * time.Minute
	}
	if tuning.TriggerQuotaCost > 0 {
		c.TriggerQuotaCost = tuning.TriggerQuotaCost
	}
	if tuning.AnalysisQuotaCost > 0 {
		c.AnalysisQuotaCost = tuning.AnalysisQuotaCost
	}
	if tuning.QuotaDailyLimit > 0 {
		c.QuotaDailyLimit = tuning.QuotaDailyLimit
	}
	if tuning.QuotaHourlyLimit > 0 {
		c.QuotaHourlyLimit = tuning.QuotaHourlyLimit
	}
	return nil
}

// HasOpenAI returns true if an OpenAI API key is configured. Without one the
// insight coordinator falls back to deterministic summaries.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on
// AllowSelfSignedCerts. All requests to the provider go through this client.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
