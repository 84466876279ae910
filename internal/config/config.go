// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	DB      DBConfig      `mapstructure:"db"`
	Sitemap SitemapConfig `mapstructure:"sitemap"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Indexer IndexerConfig `mapstructure:"indexer"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig guards the ingestion, schema and export endpoints.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// DBConfig controls access to the Postgres catalog database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SitemapConfig locates the remote channel sitemap.
type SitemapConfig struct {
	URL string `mapstructure:"url"`
}

// ScraperConfig governs per-page fetch behavior.
type ScraperConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// IndexerConfig holds the ingestion run defaults the trigger endpoint
// falls back to when the caller omits parameters.
type IndexerConfig struct {
	DefaultMax     int `mapstructure:"default_max"`
	DefaultDelayMs int `mapstructure:"default_delay_ms"`
}

// ExportConfig sets the catalog JSON export destination.
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHANNELSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// Empty defaults register the keys with viper; AutomaticEnv only
	// resolves env vars for keys it already knows about.
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("sitemap.url", "https://open.video/channels-sitemap.xml")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("indexer.default_max", 100)
	v.SetDefault("indexer.default_delay_ms", 500)
	v.SetDefault("export.path", "data/channels_index.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sitemap.URL == "" {
		return fmt.Errorf("sitemap.url must be set")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Indexer.DefaultMax <= 0 {
		return fmt.Errorf("indexer.default_max must be > 0")
	}
	if c.Indexer.DefaultDelayMs < 0 {
		return fmt.Errorf("indexer.default_delay_ms must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return fmt.Errorf("auth.token must be set when auth is enabled")
	}
	return nil
}

// ScrapeTimeout converts the scraper timeout config into a duration.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// DefaultDelay converts the default inter-request delay into a duration.
func (c Config) DefaultDelay() time.Duration {
	return time.Duration(c.Indexer.DefaultDelayMs) * time.Millisecond
}
