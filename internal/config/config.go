package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the normgate configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DatabaseConfig `yaml:"database"`
	Quota    QuotaConfig    `yaml:"quota"`
	Answers  AnswersConfig  `yaml:"answers"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
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

// UpstreamConfig describes the Infoleg registry and how its links are rewritten.
type UpstreamConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIPath        string  `yaml:"api_path"`
	Placeholder    string  `yaml:"placeholder"`
	ResourcePrefix string  `yaml:"resource_prefix"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds connection settings for the quota counter store.
// Empty Addrs keeps counters in memory only.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// QuotaConfig caps the number of calls sent to the registry.
type QuotaConfig struct {
	DailyRequestLimit   int64  `yaml:"daily_request_limit"`   // 0 = unlimited
	MonthlyRequestLimit int64  `yaml:"monthly_request_limit"` // 0 = unlimited
	Action              string `yaml:"action"`                // "reject" | "warn" (default)
}

// AnswersConfig holds the OpenAI-compatible provider used by /answers.
// Empty APIKey disables the endpoint.
type AnswersConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://servicios.infoleg.gob.ar/infolegInternet"
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Upstream.APIPath == "" {
		c.Upstream.APIPath = "api/v2.0/nacionales/normativos"
	}
	c.Upstream.APIPath = strings.Trim(c.Upstream.APIPath, "/")
	if c.Upstream.Placeholder == "" {
		c.Upstream.Placeholder = "%%server_name%%"
	}
	if c.Upstream.ResourcePrefix == "" {
		c.Upstream.ResourcePrefix = "/api/v1/recursos"
	}
	c.Upstream.ResourcePrefix = strings.TrimRight(c.Upstream.ResourcePrefix, "/")
	if c.Upstream.RateLimitBurst <= 0 {
		c.Upstream.RateLimitBurst = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "normgate:"
	}
	if c.Answers.Model == "" {
		c.Answers.Model = "gpt-4o-mini"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if !strings.HasPrefix(c.Upstream.ResourcePrefix, "/") {
		return fmt.Errorf("upstream.resource_prefix must start with /, got %q", c.Upstream.ResourcePrefix)
	}
	if strings.Contains(c.Upstream.ResourcePrefix, c.Upstream.Placeholder) {
		return fmt.Errorf("upstream.resource_prefix must not contain the placeholder %q", c.Upstream.Placeholder)
	}
	if c.Upstream.RateLimitRPS < 0 {
		return fmt.Errorf("upstream.rate_limit_rps must not be negative")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	switch c.Quota.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("quota.action must be \"warn\" or \"reject\", got %q", c.Quota.Action)
	}
	if c.Quota.DailyRequestLimit < 0 || c.Quota.MonthlyRequestLimit < 0 {
		return fmt.Errorf("quota limits must not be negative")
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
