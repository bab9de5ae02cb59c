package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	OddsFeed OddsFeedConfig `mapstructure:"odds_feed"`
	Market   MarketConfig   `mapstructure:"market"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OddsFeedConfig holds bookmaker odds provider configuration
type OddsFeedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Regions    string        `mapstructure:"regions"`
	Markets    []string      `mapstructure:"markets"`
	SharpBooks []string      `mapstructure:"sharp_books"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// MarketConfig holds prediction-market price provider configuration
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BatchChunkSize int           `mapstructure:"batch_chunk_size"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ResolverConfig holds the AI-assisted team-name resolution fallback
type ResolverConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	CallsPerRun   int           `mapstructure:"calls_per_run"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MinConfidence float64       `mapstructure:"min_confidence"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// EngineConfig holds poll-cycle behavior and signal thresholds
type EngineConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Workers        int           `mapstructure:"workers"`
	SnapshotWindow time.Duration `mapstructure:"snapshot_window"`
	RecentWindow   time.Duration `mapstructure:"recent_window"`

	MinNetEdge  float64 `mapstructure:"min_net_edge"`
	EdgeTrigger float64 `mapstructure:"edge_trigger"`

	// Tier thresholds and confidence constants are empirically tuned;
	// the numeric contract is preserved here as configuration.
	EliteNetEdge    float64 `mapstructure:"elite_net_edge"`
	EliteRawEdge    float64 `mapstructure:"elite_raw_edge"`
	StrongNetEdge   float64 `mapstructure:"strong_net_edge"`
	ConfidenceBase  int     `mapstructure:"confidence_base"`
	ConfidenceSlope float64 `mapstructure:"confidence_slope"`
	ConfidenceCap   int     `mapstructure:"confidence_cap"`

	StakeFraction    float64 `mapstructure:"stake_fraction"`
	MaxStakePerEvent float64 `mapstructure:"max_stake_per_event"`
	StakeUSD         float64 `mapstructure:"stake_usd"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MaxMarkets int    `mapstructure:"max_markets"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("EDGESCOUT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("odds_feed.base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("odds_feed.regions", "us,eu")
	v.SetDefault("odds_feed.markets", []string{"h2h"})
	v.SetDefault("odds_feed.sharp_books", []string{"pinnacle", "circasports", "betonlineag", "lowvig"})
	v.SetDefault("odds_feed.timeout", "15s")
	v.SetDefault("odds_feed.max_retries", 3)

	v.SetDefault("market.base_url", "https://clob.polymarket.com")
	v.SetDefault("market.batch_chunk_size", 100)
	v.SetDefault("market.max_concurrent", 4)
	v.SetDefault("market.timeout", "15s")

	v.SetDefault("resolver.enabled", false)
	v.SetDefault("resolver.calls_per_run", 5)
	v.SetDefault("resolver.call_timeout", "4s")
	v.SetDefault("resolver.min_confidence", 0.7)
	v.SetDefault("resolver.rate_per_second", 1.0)

	v.SetDefault("engine.poll_interval", "2m")
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.snapshot_window", "30m")
	v.SetDefault("engine.recent_window", "10m")
	v.SetDefault("engine.min_net_edge", 0.02)
	v.SetDefault("engine.edge_trigger", 0.05)
	v.SetDefault("engine.elite_net_edge", 0.05)
	v.SetDefault("engine.elite_raw_edge", 0.10)
	v.SetDefault("engine.strong_net_edge", 0.03)
	v.SetDefault("engine.confidence_base", 50)
	v.SetDefault("engine.confidence_slope", 500.0)
	v.SetDefault("engine.confidence_cap", 85)
	v.SetDefault("engine.stake_fraction", 0.01)
	v.SetDefault("engine.max_stake_per_event", 0.05)
	v.SetDefault("engine.stake_usd", 100.0)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.max_markets", 2000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.OddsFeed.BaseURL == "" {
		return fmt.Errorf("odds_feed.base_url is required")
	}
	if c.OddsFeed.APIKey == "" {
		return fmt.Errorf("odds_feed.api_key is required")
	}
	if len(c.OddsFeed.Markets) == 0 {
		return fmt.Errorf("odds_feed.markets must contain at least one market key")
	}
	if len(c.OddsFeed.SharpBooks) == 0 {
		return fmt.Errorf("odds_feed.sharp_books must contain at least one book")
	}

	if c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required")
	}
	if c.Market.BatchChunkSize < 1 || c.Market.BatchChunkSize > 500 {
		return fmt.Errorf("market.batch_chunk_size must be between 1 and 500")
	}
	if c.Market.MaxConcurrent < 1 {
		return fmt.Errorf("market.max_concurrent must be at least 1")
	}

	if c.Resolver.Enabled {
		if c.Resolver.BaseURL == "" {
			return fmt.Errorf("resolver.base_url is required when resolver is enabled")
		}
		if c.Resolver.APIKey == "" {
			return fmt.Errorf("resolver.api_key is required when resolver is enabled")
		}
		if c.Resolver.CallsPerRun < 1 {
			return fmt.Errorf("resolver.calls_per_run must be at least 1")
		}
		if c.Resolver.CallTimeout < time.Second || c.Resolver.CallTimeout > 30*time.Second {
			return fmt.Errorf("resolver.call_timeout must be between 1s and 30s")
		}
		if c.Resolver.MinConfidence < 0 || c.Resolver.MinConfidence > 1 {
			return fmt.Errorf("resolver.min_confidence must be between 0.0 and 1.0")
		}
	}

	if c.Engine.PollInterval < 30*time.Second {
		return fmt.Errorf("engine.poll_interval must be at least 30 seconds")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if c.Engine.SnapshotWindow < time.Minute {
		return fmt.Errorf("engine.snapshot_window must be at least 1 minute")
	}
	if c.Engine.RecentWindow >= c.Engine.SnapshotWindow {
		return fmt.Errorf("engine.recent_window must be shorter than engine.snapshot_window")
	}
	if c.Engine.MinNetEdge < 0 || c.Engine.MinNetEdge > 1 {
		return fmt.Errorf("engine.min_net_edge must be between 0.0 and 1.0")
	}
	if c.Engine.EdgeTrigger < c.Engine.MinNetEdge {
		return fmt.Errorf("engine.edge_trigger must not be below engine.min_net_edge")
	}
	if c.Engine.StakeFraction <= 0 || c.Engine.StakeFraction > c.Engine.MaxStakePerEvent {
		return fmt.Errorf("engine.stake_fraction must be positive and within engine.max_stake_per_event")
	}
	if c.Engine.StakeUSD <= 0 {
		return fmt.Errorf("engine.stake_usd must be positive")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.MaxMarkets < 1 {
		return fmt.Errorf("storage.max_markets must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
