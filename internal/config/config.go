package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config models taskflow.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		// Debug exposes raw internal error messages in responses.
		Debug bool `yaml:"debug"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string        `yaml:"jwt_secret"`
		JWTIssuer   string        `yaml:"jwt_issuer"`
		JWTAudience string        `yaml:"jwt_audience"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Database struct {
		Driver    string `yaml:"driver"`
		DSN       string `yaml:"dsn"`
		Workspace string `yaml:"workspace"`
	} `yaml:"database"`
	Timezone  string `yaml:"timezone"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Lock struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"lock"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// RateLimit is a per-client-IP token bucket.
type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type Webhook struct {
	ID      string        `yaml:"id"`
	URL     string        `yaml:"url"`
	Events  []string      `yaml:"events"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskflow.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the workspace config, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if cfg.Database.Workspace == "" {
				cfg.Database.Workspace = workspace
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Workspace == "" {
		cfg.Database.Workspace = workspace
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config on top of the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config.timezone: %w", err)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("config.rate_limit.rps and burst must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	seen := map[string]bool{}
	for i, h := range c.Webhooks {
		if h.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		u, err := url.Parse(h.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("webhooks[%d].url must be an http(s) url", i)
		}
		if h.ID != "" {
			if seen[h.ID] {
				return fmt.Errorf("webhooks[%d].id %q is duplicated", i, h.ID)
			}
			seen[h.ID] = true
		}
	}
	return nil
}

// Location resolves the application time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api
  debug: false

auth:
  # Set TASKFLOW_JWT_SECRET instead of committing a secret.
  jwt_secret: ""
  token_ttl: 24h

database:
  driver: sqlite
  dsn: ""

timezone: Asia/Jakarta

rate_limit:
  enabled: true
  rps: 20
  burst: 40

lock:
  redis_url: ""
  ttl: 30s

log:
  level: info
  format: text

webhooks: []
`
