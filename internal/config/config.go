package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pokedan/cardwatch/backend/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	Listing  ListingConfig  `mapstructure:"listing"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Images   ImagesConfig   `mapstructure:"images"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Logging  logging.Config `mapstructure:"logging"`
}

// ListingConfig identifies the seller listing to scrape.
type ListingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Seller         string        `mapstructure:"seller"`
	Sort           string        `mapstructure:"sort"`
	Category       string        `mapstructure:"category"`
	Status         string        `mapstructure:"status"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxPages       int           `mapstructure:"max_pages"`
}

// RatesConfig governs the currency rate cache and its providers.
type RatesConfig struct {
	TTL                time.Duration `mapstructure:"ttl"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ExchangeRateAPIURL string        `mapstructure:"exchangerate_api_url"`
	APIKeys            []string      `mapstructure:"api_keys"`
	OpenERAPIURL       string        `mapstructure:"open_erapi_url"`
}

// ImagesConfig tunes high-resolution image resolution.
type ImagesConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	CacheSize      int           `mapstructure:"cache_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig locates the sqlite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// RefreshConfig governs the background snapshot refresh worker.
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.base_url", "https://www.pricecharting.com")
	v.SetDefault("listing.sort", "name")
	v.SetDefault("listing.category", "all")
	v.SetDefault("listing.status", "collection")
	v.SetDefault("listing.request_timeout", "10s")
	v.SetDefault("listing.max_retries", 3)
	v.SetDefault("listing.max_pages", 50)

	v.SetDefault("rates.ttl", "12h")
	v.SetDefault("rates.request_timeout", "10s")
	v.SetDefault("rates.exchangerate_api_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("rates.open_erapi_url", "https://open.er-api.com/v6")

	v.SetDefault("images.concurrency", 4)
	v.SetDefault("images.cache_size", 512)
	v.SetDefault("images.request_timeout", "10s")

	v.SetDefault("database.path", "./cardwatch.db")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	v.SetDefault("refresh.interval", "15m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Listing.Seller == "" {
		return fmt.Errorf("listing.seller must be set")
	}
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing.base_url must be set")
	}
	if c.Listing.MaxPages <= 0 {
		return fmt.Errorf("listing.max_pages must be greater than zero")
	}
	if c.Rates.TTL <= 0 {
		return fmt.Errorf("rates.ttl must be greater than zero")
	}
	if c.Images.Concurrency <= 0 {
		return fmt.Errorf("images.concurrency must be greater than zero")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	return nil
}
