package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/areumknits/patternview/internal/security"
)

// Config represents the patternview configuration
type Config struct {
	Title   string        `yaml:"title"`
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Storage StorageConfig `yaml:"storage"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig holds site-level configuration
type SiteConfig struct {
	LiveURL string `yaml:"live_url,omitempty"` // Public site URL the exported "home" link points to
	Theme   string `yaml:"theme,omitempty"`    // Ambient site theme: "light" or "dark"
}

// GetTheme returns the ambient site theme (default: "light")
func (c SiteConfig) GetTheme() string {
	if strings.EqualFold(c.Theme, "dark") {
		return "dark"
	}
	return "light"
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// Addr returns host:port for the listener
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CatalogConfig points at the pattern catalog
type CatalogConfig struct {
	Dir   string `yaml:"dir"`   // Directory of pattern .md files, relative to the config file
	Watch bool   `yaml:"watch"` // Reload patterns when files change
}

// ViewerConfig holds session defaults for the pattern viewer
type ViewerConfig struct {
	Font          FontConfig `yaml:"font"`
	DefaultUnit   string     `yaml:"default_unit"`   // "in" or "cm"
	DefaultSize   string     `yaml:"default_size"`   // Used when a pattern has no size table
	KeyPrefix     string     `yaml:"key_prefix"`     // Storage key prefix
	SchemaVersion string     `yaml:"schema_version"` // Bump to orphan stored state of an older shape
}

// FontConfig bounds the reading font size in pixels
type FontConfig struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Step    int `yaml:"step"`
	Default int `yaml:"default"`
}

// StorageConfig selects the durable session store
type StorageConfig struct {
	Driver string       `yaml:"driver"`          // "memory", "sqlite", "postgres" or "redis"
	DSN    string       `yaml:"dsn,omitempty"`   // sqlite path or postgres connection string (env vars expanded)
	Redis  RedisConfig  `yaml:"redis,omitempty"` // For redis
	TTL    string       `yaml:"ttl,omitempty"`   // Idle time after which a browser's state is dropped. Default: 720h
	Retry  *RetryConfig `yaml:"retry,omitempty"` // Retry configuration for network stores
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"` // env vars expanded
	DB       int    `yaml:"db,omitempty"`
}

// RetryConfig configures retry behavior for network stores
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries,omitempty"` // Maximum retry attempts (default: 3)
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial delay (e.g., "100ms"). Default: 100ms
	MaxDelay   string `yaml:"max_delay,omitempty"`   // Maximum delay (e.g., "5s"). Default: 5s
}

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// GetDriver returns the storage driver (default: "memory")
func (c StorageConfig) GetDriver() string {
	if c.Driver == "" {
		return DriverMemory
	}
	return strings.ToLower(c.Driver)
}

// GetDSN returns the DSN with environment variable expansion
func (c StorageConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetRedisPassword returns the redis password with environment variable expansion
func (c StorageConfig) GetRedisPassword() string {
	return os.ExpandEnv(c.Redis.Password)
}

// GetTTL returns the idle TTL (default: 30 days)
func (c StorageConfig) GetTTL() time.Duration {
	const def = 720 * time.Hour
	if c.TTL == "" {
		return def
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetRetryMaxRetries returns the max retries (default: 3, set to 0 to disable retries)
func (c StorageConfig) GetRetryMaxRetries() int {
	if c.Retry == nil {
		return 3
	}
	if c.Retry.MaxRetries < 0 {
		return 3
	}
	return c.Retry.MaxRetries
}

// GetRetryBaseDelay returns the base delay (default: 100ms)
func (c StorageConfig) GetRetryBaseDelay() time.Duration {
	if c.Retry == nil || c.Retry.BaseDelay == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Retry.BaseDelay)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetRetryMaxDelay returns the max delay (default: 5s)
func (c StorageConfig) GetRetryMaxDelay() time.Duration {
	if c.Retry == nil || c.Retry.MaxDelay == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ExportConfig holds snapshot export configuration
type ExportConfig struct {
	Minify    bool             `yaml:"minify"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
	MaxTrackedIPs     int     `yaml:"max_tracked_ips,omitempty"`     // Unique client IPs remembered (default: 10000)
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *ExportConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *ExportConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetMaxTrackedIPs returns how many client IPs the limiter tracks (default: 10000)
func (c *ExportConfig) GetMaxTrackedIPs() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.MaxTrackedIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxTrackedIPs
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Areum Knits Patterns",
		Site: SiteConfig{
			Theme: "light",
		},
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Catalog: CatalogConfig{
			Dir:   ".",
			Watch: true,
		},
		Viewer: ViewerConfig{
			Font:          FontConfig{Min: 14, Max: 20, Step: 1, Default: 16},
			DefaultUnit:   "in",
			DefaultSize:   "L",
			KeyPrefix:     "areumPattern",
			SchemaVersion: "v2",
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
			TTL:    "720h",
		},
		Export: ExportConfig{
			Minify: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs error

	switch c.Storage.GetDriver() {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.DSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("storage.dsn: sqlite needs a database path"))
		}
	case DriverPostgres:
		if c.Storage.GetDSN() == "" {
			errs = multierr.Append(errs, fmt.Errorf("storage.dsn: postgres needs a connection string"))
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = multierr.Append(errs, fmt.Errorf("storage.redis.addr is required for the redis driver"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.TTL != "" {
		if d, err := time.ParseDuration(c.Storage.TTL); err != nil || d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("storage.ttl: %q is not a positive duration", c.Storage.TTL))
		}
	}

	f := c.Viewer.Font
	if f.Step <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("viewer.font.step must be positive"))
	}
	if f.Min > f.Max {
		errs = multierr.Append(errs, fmt.Errorf("viewer.font: min %d is above max %d", f.Min, f.Max))
	} else if f.Default < f.Min || f.Default > f.Max {
		errs = multierr.Append(errs, fmt.Errorf("viewer.font.default %d is outside [%d, %d]", f.Default, f.Min, f.Max))
	}
	if u := strings.ToLower(c.Viewer.DefaultUnit); u != "in" && u != "cm" {
		errs = multierr.Append(errs, fmt.Errorf("viewer.default_unit: %q must be \"in\" or \"cm\"", c.Viewer.DefaultUnit))
	}
	if c.Viewer.KeyPrefix == "" || c.Viewer.SchemaVersion == "" {
		errs = multierr.Append(errs, fmt.Errorf("viewer.key_prefix and viewer.schema_version are required"))
	}

	if t := strings.ToLower(c.Site.Theme); t != "" && t != "light" && t != "dark" {
		errs = multierr.Append(errs, fmt.Errorf("site.theme: %q must be \"light\" or \"dark\"", c.Site.Theme))
	}
	if c.Site.LiveURL != "" {
		if err := security.ValidateSiteURL(c.Site.LiveURL); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("site.live_url: %w", err))
		}
	}

	errs = multierr.Append(errs, c.Logging.Validate())
	return errs
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	// If no config path provided, use default
	if configPath == "" {
		return DefaultConfig(), nil
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Catalog dir is relative to the config file
	if config.Catalog.Dir != "" && !filepath.IsAbs(config.Catalog.Dir) {
		config.Catalog.Dir = filepath.Join(filepath.Dir(configPath), config.Catalog.Dir)
	}
	if config.Storage.GetDriver() == DriverSQLite && config.Storage.DSN != "" && !filepath.IsAbs(config.Storage.DSN) {
		config.Storage.DSN = filepath.Join(filepath.Dir(configPath), config.Storage.DSN)
	}

	return config, nil
}

// LoadFromDir looks for patternview.yaml or pv.yaml in the given directory
// If none is found, returns the default configuration rooted at dir
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"patternview.yaml", "pv.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	config := DefaultConfig()
	config.Catalog.Dir = dir
	return config, nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
