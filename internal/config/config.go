// Package config provides the application configuration. All cache TTLs,
// capacities, and the fetch concurrency budget are explicit values passed
// at construction rather than ambient constants.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the core components consume.
type Config struct {
	// APIKey authenticates against the catalog service.
	APIKey string
	// DBPath locates the durable key-value store.
	DBPath string
	// ProfitMode selects the profit base: "market" or "bazaar".
	ProfitMode string

	// Cache TTLs.
	CatalogTTL   time.Duration
	SnapshotTTL  time.Duration
	PriceListTTL time.Duration
	CartTTL      time.Duration

	// PollInterval is the trade-log scan cadence.
	PollInterval time.Duration
	// PriceListRefresh is the background price-list refresh cadence.
	PriceListRefresh time.Duration

	// Durable cache capacities.
	SnapshotCacheCapacity int
	CartCacheCapacity     int

	// MaxConcurrency is the fetch scheduler's slot budget.
	MaxConcurrency int
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		ProfitMode:            "market",
		CatalogTTL:            7 * 24 * time.Hour,
		SnapshotTTL:           10 * time.Minute,
		PriceListTTL:          5 * time.Minute,
		CartTTL:               3 * time.Minute,
		PollInterval:          1500 * time.Millisecond,
		PriceListRefresh:      30 * time.Minute,
		SnapshotCacheCapacity: 250,
		CartCacheCapacity:     30,
		MaxConcurrency:        3,
	}
}

// Load builds a Config from viper, falling back to defaults for anything
// unset.
func Load() (Config, error) {
	cfg := Default()

	cfg.APIKey = viper.GetString("api_key")
	if path := viper.GetString("db_path"); path != "" {
		cfg.DBPath = ExpandPath(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".local", "share", "tradeledger", "tradeledger.db")
	}
	if mode := viper.GetString("profit_mode"); mode != "" {
		cfg.ProfitMode = mode
	}
	if d := viper.GetDuration("poll_interval"); d > 0 {
		cfg.PollInterval = d
	}
	if n := viper.GetInt("max_concurrency"); n > 0 {
		cfg.MaxConcurrency = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the components rely on.
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.ProfitMode != "market" && c.ProfitMode != "bazaar" {
		return fmt.Errorf("profit_mode must be market or bazaar, got %q", c.ProfitMode)
	}
	for _, ttl := range []struct {
		name string
		d    time.Duration
	}{
		{"catalog_ttl", c.CatalogTTL},
		{"snapshot_ttl", c.SnapshotTTL},
		{"pricelist_ttl", c.PriceListTTL},
		{"cart_ttl", c.CartTTL},
	} {
		if ttl.d <= 0 {
			return fmt.Errorf("%s must be positive", ttl.name)
		}
	}
	if c.SnapshotCacheCapacity <= 0 || c.CartCacheCapacity <= 0 {
		return fmt.Errorf("cache capacities must be positive")
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}
