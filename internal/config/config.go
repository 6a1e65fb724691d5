package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rankfuse API configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Scorer        ScorerConfig        `yaml:"scorer"`
	Cache         CacheConfig         `yaml:"cache"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticsearchConfig holds search cluster connection settings.
type ElasticsearchConfig struct {
	Addrs              []string `yaml:"addrs"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	APIKey             string   `yaml:"api_key"`
	MaxRetries         int      `yaml:"max_retries"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// ScorerConfig holds relevance scorer settings.
type ScorerConfig struct {
	Provider   string          `yaml:"provider"` // zeroentropy, embedding (default: zeroentropy)
	BaseURL    string          `yaml:"base_url"`
	APIKey     string          `yaml:"api_key"`
	Model      string          `yaml:"model"`
	TimeoutSec int             `yaml:"timeout_sec"`
	MaxRetries int             `yaml:"max_retries"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	OpenAI     OpenAIConfig    `yaml:"openai"`
}

// RateLimitConfig holds client-side rate limiter settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// OpenAIConfig holds embedding scorer settings (provider: embedding).
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// CacheConfig holds relevance score cache settings.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// PipelineConfig holds fusion pipeline defaults.
type PipelineConfig struct {
	InitialFetchSize int     `yaml:"initial_fetch_size"`
	RerankSize       int     `yaml:"rerank_size"`
	FinalSize        int     `yaml:"final_size"`
	CombineScores    *bool   `yaml:"combine_scores"`
	IndexWeight      float64 `yaml:"index_weight"`
	RelevanceWeight  float64 `yaml:"relevance_weight"`
	MaxConcurrent    int     `yaml:"max_concurrent"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elasticsearch.MaxRetries <= 0 {
		c.Elasticsearch.MaxRetries = 3
	}
	if c.Scorer.Provider == "" {
		c.Scorer.Provider = "zeroentropy"
	}
	if c.Scorer.TimeoutSec <= 0 {
		c.Scorer.TimeoutSec = 30
	}
	if c.Scorer.MaxRetries <= 0 {
		c.Scorer.MaxRetries = 3
	}
	if c.Scorer.RateLimit.RequestsPerMinute <= 0 {
		c.Scorer.RateLimit.RequestsPerMinute = 60
	}
	if c.Scorer.RateLimit.Burst <= 0 {
		c.Scorer.RateLimit.Burst = 10
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Pipeline.InitialFetchSize <= 0 {
		c.Pipeline.InitialFetchSize = 100
	}
	if c.Pipeline.RerankSize <= 0 {
		c.Pipeline.RerankSize = 20
	}
	if c.Pipeline.FinalSize <= 0 {
		c.Pipeline.FinalSize = 10
	}
	if c.Pipeline.CombineScores == nil {
		t := true
		c.Pipeline.CombineScores = &t
	}
	if c.Pipeline.IndexWeight == 0 && c.Pipeline.RelevanceWeight == 0 {
		c.Pipeline.IndexWeight = 0.3
		c.Pipeline.RelevanceWeight = 0.7
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		c.Pipeline.MaxConcurrent = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elasticsearch.Addrs) == 0 {
		return fmt.Errorf("elasticsearch.addrs is required")
	}
	switch c.Scorer.Provider {
	case "zeroentropy":
		if c.Scorer.APIKey == "" {
			return fmt.Errorf("scorer.api_key is required for provider %q", c.Scorer.Provider)
		}
	case "embedding":
		if c.Scorer.OpenAI.APIKey == "" {
			return fmt.Errorf("scorer.openai.api_key is required for provider %q", c.Scorer.Provider)
		}
		if c.Scorer.OpenAI.EmbeddingModel == "" {
			return fmt.Errorf("scorer.openai.embedding_model is required for provider %q", c.Scorer.Provider)
		}
	default:
		return fmt.Errorf("scorer.provider must be \"zeroentropy\" or \"embedding\", got %q", c.Scorer.Provider)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled is true")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
