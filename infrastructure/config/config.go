package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"canvas-sync/domain/versioning"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (reference sync server)
	ServerAddress string
	Environment   string

	// Remote sync API (engine side)
	RemoteBaseURL  string
	RequestTimeout time.Duration

	// Local persistence
	StorePath string

	// Sync policy, optionally hot-reloaded from PolicyFile
	Policy     SyncPolicy
	PolicyFile string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// SyncPolicy holds the tunable scheduling and compaction parameters of the
// sync engine. The compaction thresholds are deliberately configuration,
// not constants.
type SyncPolicy struct {
	RecorderDebounce          time.Duration
	PushInterval              time.Duration
	PollInterval              time.Duration
	PollWindow                time.Duration
	CompactionMaxTransactions int
	CompactionMaxAge          time.Duration
	MaxContextItemBytes       int
}

// DefaultSyncPolicy returns the default sync policy
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		RecorderDebounce:          500 * time.Millisecond,
		PushInterval:              2 * time.Second,
		PollInterval:              3 * time.Second,
		PollWindow:                5 * time.Second,
		CompactionMaxTransactions: 100,
		CompactionMaxAge:          time.Hour,
		MaxContextItemBytes:       8192,
	}
}

// Compaction returns the domain compaction policy derived from this sync
// policy
func (p SyncPolicy) Compaction() versioning.CompactionPolicy {
	return versioning.CompactionPolicy{
		MaxTransactions: p.CompactionMaxTransactions,
		MaxAge:          p.CompactionMaxAge,
	}
}

// Validate checks the policy for nonsensical values
func (p SyncPolicy) Validate() error {
	if p.RecorderDebounce <= 0 {
		return fmt.Errorf("recorderDebounce must be positive")
	}
	if p.PushInterval <= 0 || p.PollInterval <= 0 {
		return fmt.Errorf("push and poll intervals must be positive")
	}
	if p.PollWindow < p.PollInterval {
		return fmt.Errorf("pollWindow must cover at least one poll interval")
	}
	if p.CompactionMaxTransactions <= 0 {
		return fmt.Errorf("compactionMaxTransactions must be positive")
	}
	return nil
}

// PolicyProvider yields the current sync policy. Implementations may serve
// a static policy or one hot-reloaded from a file.
type PolicyProvider interface {
	Policy() SyncPolicy
}

// StaticPolicy is a PolicyProvider that always returns the same policy
type StaticPolicy struct {
	P SyncPolicy
}

// Policy implements PolicyProvider
func (s StaticPolicy) Policy() SyncPolicy {
	return s.P
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		RemoteBaseURL:  getEnv("REMOTE_BASE_URL", "http://localhost:8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		StorePath:  getEnv("STORE_PATH", "canvas-sync.db"),
		PolicyFile: getEnv("POLICY_FILE", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	policy := DefaultSyncPolicy()
	policy.RecorderDebounce = getEnvDuration("RECORDER_DEBOUNCE", policy.RecorderDebounce)
	policy.PushInterval = getEnvDuration("PUSH_INTERVAL", policy.PushInterval)
	policy.PollInterval = getEnvDuration("POLL_INTERVAL", policy.PollInterval)
	policy.PollWindow = getEnvDuration("POLL_WINDOW", policy.PollWindow)
	policy.CompactionMaxTransactions = getEnvInt("COMPACTION_MAX_TRANSACTIONS", policy.CompactionMaxTransactions)
	policy.CompactionMaxAge = getEnvDuration("COMPACTION_MAX_AGE", policy.CompactionMaxAge)
	policy.MaxContextItemBytes = getEnvInt("MAX_CONTEXT_ITEM_BYTES", policy.MaxContextItemBytes)
	cfg.Policy = policy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	return c.Policy.Validate()
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
