package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cigarpricescout/pipeline/internal/infrastructure/extract"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Data       DataConfig                `mapstructure:"data"`
	Extraction ExtractionConfig          `mapstructure:"extraction"`
	Enrichment EnrichmentConfig          `mapstructure:"enrichment"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Mirror     MirrorConfig              `mapstructure:"mirror"`
	Retailers  map[string]RetailerConfig `mapstructure:"retailers"`
}

// ServerConfig holds the read-side API configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DataConfig locates the on-disk catalog, master, ledger, and promotion files
type DataConfig struct {
	CatalogDir      string `mapstructure:"catalog_dir"`
	MasterPath      string `mapstructure:"master_path"`
	LedgerPath      string `mapstructure:"ledger_path"`
	PromotionsPath  string `mapstructure:"promotions_path"`
	BackupRetention int    `mapstructure:"backup_retention"`
}

// ExtractionConfig holds fetch and disambiguation settings shared by
// all retailers
type ExtractionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	PerHostRPS float64       `mapstructure:"per_host_rps"`
	UserAgent  string        `mapstructure:"user_agent"`

	// Profiles declares custom locator profiles beyond the built-in ones.
	// A retailer's profile name is looked up here first.
	Profiles map[string]extract.LocatorProfile `mapstructure:"profiles"`
}

// LocatorProfile resolves a retailer's profile: custom profiles from the
// config file take precedence over the built-in platform profiles.
func (c *ExtractionConfig) LocatorProfile(name string) extract.LocatorProfile {
	if p, ok := c.Profiles[name]; ok {
		if p.Name == "" {
			p.Name = name
		}
		return p.Normalize()
	}
	return extract.ProfileFor(name)
}

// RetailerConfig describes one tracked retailer. Profile names a custom
// or built-in locator profile; an empty name falls back to the generic one.
type RetailerConfig struct {
	CatalogFile string `mapstructure:"catalog_file"`
	Profile     string `mapstructure:"profile"`
}

// EnrichmentConfig tunes wrapper alias matching
type EnrichmentConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MirrorConfig enables the optional Postgres observation mirror
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DSN       string `mapstructure:"dsn"`
	Schema    string `mapstructure:"schema"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cigarscout/")

	v.SetEnvPrefix("CIGARSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults carry a bare setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"https://cigarpricescout.com", "http://localhost:3000"})

	v.SetDefault("data.catalog_dir", "./data/catalogs")
	v.SetDefault("data.master_path", "./data/master.csv")
	v.SetDefault("data.ledger_path", "./data/history/price_history.csv")
	v.SetDefault("data.promotions_path", "./data/promotions.json")
	v.SetDefault("data.backup_retention", 3)

	v.SetDefault("extraction.timeout", "10s")
	v.SetDefault("extraction.per_host_rps", 1.0)
	v.SetDefault("extraction.user_agent", "CigarPriceScoutBot/1.0 (+https://cigarpricescout.com/bot)")

	v.SetDefault("enrichment.similarity_threshold", 0.85)

	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.schema", "public")
	v.SetDefault("mirror.batch_size", 500)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Data.CatalogDir == "" {
		return fmt.Errorf("catalog directory is required (set CIGARSCOUT_DATA_CATALOG_DIR)")
	}
	if config.Data.LedgerPath == "" {
		return fmt.Errorf("ledger path is required (set CIGARSCOUT_DATA_LEDGER_PATH)")
	}
	if config.Extraction.PerHostRPS <= 0 {
		return fmt.Errorf("per-host request rate must be positive, got: %f", config.Extraction.PerHostRPS)
	}
	if config.Enrichment.SimilarityThreshold <= 0 || config.Enrichment.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got: %f", config.Enrichment.SimilarityThreshold)
	}
	if config.Mirror.Enabled && config.Mirror.DSN == "" {
		return fmt.Errorf("mirror DSN is required when the mirror is enabled")
	}
	for name, retailer := range config.Retailers {
		if retailer.CatalogFile == "" {
			return fmt.Errorf("retailer %q has no catalog_file", name)
		}
	}
	for name, profile := range config.Extraction.Profiles {
		if profile.PriceRange.Max != 0 && profile.PriceRange.Max < profile.PriceRange.Min {
			return fmt.Errorf("profile %q has an inverted price range", name)
		}
	}
	return nil
}
