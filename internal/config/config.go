package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Worker   WorkerConfig   `yaml:"worker"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Per-owner limit on model-backed endpoints. Zero disables it.
	ModelRequestsPerMinute int `yaml:"model_requests_per_minute"`
	ModelBurst             int `yaml:"model_burst"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig contains completion model settings.
type LLMConfig struct {
	APIKey           string   `yaml:"-"` // env-only, never in YAML
	Model            string   `yaml:"model"`
	BaseURL          string   `yaml:"base_url"`
	StepMaxTokens    int      `yaml:"step_max_tokens"`
	SummaryMaxTokens int      `yaml:"summary_max_tokens"`
	QuickMaxTokens   int      `yaml:"quick_max_tokens"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	Retries          int      `yaml:"retries"`
	RetryPause       Duration `yaml:"retry_pause"`
}

// CallBudget is the longest a single completion can take, counting every
// retry and the pauses between them.
func (c LLMConfig) CallBudget() time.Duration {
	retries := c.Retries
	if retries < 0 {
		retries = 0
	}
	attempts := time.Duration(retries + 1)
	return time.Duration(c.RequestTimeout)*attempts + time.Duration(c.RetryPause)*time.Duration(retries)
}

// AuthConfig contains bearer token settings.
type AuthConfig struct {
	JWTSecret string `yaml:"-"` // env-only, never in YAML
	Issuer    string `yaml:"issuer"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	SummaryRetryInterval    Duration `yaml:"summary_retry_interval"`
	SummaryRetryMaxAttempts int      `yaml:"summary_retry_max_attempts"`
	SummaryRetryBatchSize   int      `yaml:"summary_retry_batch_size"`
}

// ArchiveConfig contains S3-compatible summary archive settings.
// An empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only
	SecretKey string   `yaml:"-"` // env-only
	URLExpiry Duration `yaml:"url_expiry"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DevMode reports whether VERDICT_DEV_MODE is set.
func DevMode() bool {
	return os.Getenv("VERDICT_DEV_MODE") == "true"
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("VERDICT_CONFIG_PATH", "config/verdict.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(150 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),

			ModelRequestsPerMinute: 30,
			ModelBurst:             10,
		},
		Database: DatabaseConfig{
			Path: "data/verdict.db",
		},
		LLM: LLMConfig{
			Model:            "gpt-4o-mini",
			StepMaxTokens:    1000,
			SummaryMaxTokens: 1500,
			QuickMaxTokens:   300,
			RequestTimeout:   Duration(60 * time.Second),
			Retries:          1,
			RetryPause:       Duration(500 * time.Millisecond),
		},
		Auth: AuthConfig{
			Issuer: "verdict",
		},
		Worker: WorkerConfig{
			SummaryRetryInterval:    Duration(2 * time.Minute),
			SummaryRetryMaxAttempts: 5,
			SummaryRetryBatchSize:   20,
		},
		Archive: ArchiveConfig{
			Region:    "us-east-1",
			UseSSL:    &useSSL,
			URLExpiry: Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values; unparseable ones are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("VERDICT_PORT", &cfg.Server.Port)
	envDuration("VERDICT_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("VERDICT_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("VERDICT_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("VERDICT_MODEL_RATE_PER_MINUTE", &cfg.Server.ModelRequestsPerMinute)
	envInt("VERDICT_MODEL_RATE_BURST", &cfg.Server.ModelBurst)

	// Database
	envString("VERDICT_DB_PATH", &cfg.Database.Path)

	// LLM (OPENAI_API_KEY is industry convention)
	envString("OPENAI_API_KEY", &cfg.LLM.APIKey)
	envString("VERDICT_LLM_MODEL", &cfg.LLM.Model)
	envString("VERDICT_LLM_BASE_URL", &cfg.LLM.BaseURL)
	envInt("VERDICT_LLM_STEP_MAX_TOKENS", &cfg.LLM.StepMaxTokens)
	envInt("VERDICT_LLM_SUMMARY_MAX_TOKENS", &cfg.LLM.SummaryMaxTokens)
	envDuration("VERDICT_LLM_TIMEOUT", &cfg.LLM.RequestTimeout)
	envInt("VERDICT_LLM_RETRIES", &cfg.LLM.Retries)

	// Auth
	envString("VERDICT_JWT_SECRET", &cfg.Auth.JWTSecret)
	envString("VERDICT_JWT_ISSUER", &cfg.Auth.Issuer)

	// Worker
	envDuration("VERDICT_SUMMARY_RETRY_INTERVAL", &cfg.Worker.SummaryRetryInterval)
	envInt("VERDICT_SUMMARY_RETRY_MAX_ATTEMPTS", &cfg.Worker.SummaryRetryMaxAttempts)
	envInt("VERDICT_SUMMARY_RETRY_BATCH_SIZE", &cfg.Worker.SummaryRetryBatchSize)

	// Archive
	envString("VERDICT_ARCHIVE_BUCKET", &cfg.Archive.Bucket)
	envString("VERDICT_S3_ENDPOINT", &cfg.Archive.Endpoint)
	envString("VERDICT_S3_REGION", &cfg.Archive.Region)
	envString("VERDICT_S3_ACCESS_KEY", &cfg.Archive.AccessKey)
	envString("VERDICT_S3_SECRET_KEY", &cfg.Archive.SecretKey)
	if v := os.Getenv("VERDICT_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}
	envDuration("VERDICT_S3_URL_EXPIRY", &cfg.Archive.URLExpiry)

	// Log
	envString("VERDICT_LOG_LEVEL", &cfg.Log.Level)
	envString("VERDICT_LOG_FORMAT", &cfg.Log.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that required configuration values are set.
// In dev mode (VERDICT_DEV_MODE=true), secret validation is skipped.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	// Suggest waits out the whole model budget before falling back, and the
	// fallback still has to be written.
	if wt := time.Duration(c.Server.WriteTimeout); wt > 0 && wt <= c.LLM.CallBudget() {
		return fmt.Errorf("server write timeout %v must exceed the LLM call budget %v (request_timeout x (retries+1) + pauses)",
			wt, c.LLM.CallBudget())
	}
	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("archive endpoint is required when a bucket is set")
	}

	if DevMode() {
		return nil
	}

	if c.LLM.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("VERDICT_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
