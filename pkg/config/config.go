package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for storymine-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     int    `yaml:"port" env:"PORT" env-default:"3001"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"development"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// CORSOrigin is the allowed frontend origin; "*" in development.
	CORSOrigin string `yaml:"cors_origin" env:"CORS_ORIGIN" env-default:"*"`

	// PortFile is where the actually-bound port is written after startup,
	// so sibling processes (the frontend dev proxy) can find the server.
	PortFile string `yaml:"port_file" env:"PORT_FILE" env-default:".server-port"`

	// Database configuration (PostgreSQL archive)
	Database DatabaseConfig `yaml:"database"`

	// StoryMap upstream service configuration
	StoryMap StoryMapConfig `yaml:"storymap"`

	// Cache configuration (Redis, optional)
	Cache CacheConfig `yaml:"cache"`

	// Anthropic configuration for the narrative service
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DB_USER" env-default:"storymine_app"`
	Password       string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"DB_NAME" env-default:"storymap"`
	SSLMode        string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"10"`

	// URL, when set, takes precedence over the discrete fields above.
	URL string `yaml:"-" env:"DATABASE_URL"`

	// QueryTimeout bounds every archive query.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"5s"`
}

// StoryMapConfig holds the upstream StoryMap API client configuration.
type StoryMapConfig struct {
	// BaseURL is the environment-configured primary candidate. The client
	// appends the conventional local fallbacks after it.
	BaseURL string `yaml:"base_url" env:"STORYMAP_API_URL" env-default:""`
	APIKey  string `yaml:"-" env:"STORYMAP_API_KEY"` // Secret - not in YAML

	ProbeTimeout   time.Duration `yaml:"probe_timeout" env:"STORYMAP_PROBE_TIMEOUT" env-default:"3s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"STORYMAP_REQUEST_TIMEOUT" env-default:"5s"`
}

// Candidates returns the ordered candidate base URL list: the configured
// primary (when set) followed by the fixed local fallbacks.
func (c *StoryMapConfig) Candidates() []string {
	fallbacks := []string{
		"http://storymap-api:5001",
		"http://localhost:5001",
		"http://localhost:8080",
	}
	if c.BaseURL == "" {
		return fallbacks
	}
	candidates := []string{strings.TrimSuffix(c.BaseURL, "/")}
	for _, f := range fallbacks {
		if f != candidates[0] {
			candidates = append(candidates, f)
		}
	}
	return candidates
}

// CacheConfig holds the optional Redis stats cache configuration.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"CACHE_ENABLED" env-default:"false"`
	URL      string        `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
}

// AnthropicConfig holds Claude API settings for the narrative service.
// The service degrades to canned responses when the key is empty.
type AnthropicConfig struct {
	APIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Model  string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-sonnet-4-5-20250929"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A local .env file is loaded first when present, mirroring how
// the service is configured in development. The version parameter is
// injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	// Missing .env is fine; env vars may come from the real environment.
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// Container deployments set everything via env and ship no YAML.
		if err2 := cleanenv.ReadEnv(cfg); err2 != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err2)
		}
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in a production environment.
// Schema provisioning is skipped in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ConnectionString returns a PostgreSQL connection string. DATABASE_URL wins
// over the discrete fields when both are present.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
