// ABOUTME: Configuration loading and parsing for cursor-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete cursor-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Cursor    CursorConfig    `yaml:"cursor"`
	GitHub    GitHubConfig    `yaml:"github"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	WebConfig WebConfigConfig `yaml:"webconfig"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	CertFile  string `yaml:"cert_file"` // TLS cert file (generate via: tailscale cert <hostname>)
	KeyFile   string `yaml:"key_file"`  // TLS key file
	Funnel    bool   `yaml:"funnel"`    // Enable public Funnel (implies HTTPS)
}

// CursorConfig holds Cursor Background Agents API settings
type CursorConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// GitHubConfig holds the secondary branch-listing API settings.
// Token is optional; it unlocks private repositories.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// CacheConfig holds lookup cache settings
type CacheConfig struct {
	Window time.Duration `yaml:"-"`

	WindowRaw string `yaml:"window"`
}

// AuthConfig holds authentication configuration. When JWTSecret is empty
// the tool-invocation endpoint accepts unauthenticated requests.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebConfigConfig holds the agent launcher web UI configuration
type WebConfigConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PresetsPath string `yaml:"presets_path"`
	// BaseURL is the external URL for the launcher UI
	// If not set, it's auto-detected from server.http_addr or tailscale hostname
	BaseURL string `yaml:"base_url"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Cursor.APIKey == "" {
		return fmt.Errorf("cursor.api_key is required (set CURSOR_API_KEY)")
	}

	// A server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Cursor.MaxRetries < 0 {
		return fmt.Errorf("cursor.max_retries must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cursor.TimeoutRaw != "" {
		cfg.Cursor.Timeout, err = time.ParseDuration(cfg.Cursor.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing cursor.timeout %q: %w", cfg.Cursor.TimeoutRaw, err)
		}
	}

	if cfg.Cache.WindowRaw != "" {
		cfg.Cache.Window, err = time.ParseDuration(cfg.Cache.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.window %q: %w", cfg.Cache.WindowRaw, err)
		}
	}

	return nil
}
