package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"token-signal-watch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Tokens    []TokenConfig   `mapstructure:"tokens"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs pipeline cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// FetcherConfig tunes the resilient request executor and the fan-out.
type FetcherConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SourcesConfig holds per-upstream endpoint settings.
type SourcesConfig struct {
	Binance   BinanceConfig   `mapstructure:"binance"`
	Coingecko CoingeckoConfig `mapstructure:"coingecko"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
}

// BinanceConfig covers the ticker endpoint and the reference-asset lookup.
type BinanceConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	Executable      bool    `mapstructure:"executable"`
	ReferenceSymbol string  `mapstructure:"reference_symbol"`
	FallbackETHUSD  float64 `mapstructure:"fallback_eth_usd"`
}

// CoingeckoConfig covers the aggregator spot-price endpoint.
type CoingeckoConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Executable bool   `mapstructure:"executable"`
}

// UniswapConfig covers the liquidity-pool subgraph.
type UniswapConfig struct {
	SubgraphURL string `mapstructure:"subgraph_url"`
	Executable  bool   `mapstructure:"executable"`
}

// TokenConfig registers one tracked instrument across sources.
type TokenConfig struct {
	Symbol      string `mapstructure:"symbol"`
	Name        string `mapstructure:"name"`
	BinanceID   string `mapstructure:"binance_id"`
	CoingeckoID string `mapstructure:"coingecko_id"`
	UniswapID   string `mapstructure:"uniswap_id"`
}

// AnalyticsConfig carries windows and thresholds for the derived signals.
type AnalyticsConfig struct {
	Lookback           time.Duration `mapstructure:"lookback"`
	ArbitrageThreshold float64       `mapstructure:"arbitrage_threshold"`
	ZScoreWindow       int           `mapstructure:"zscore_window"`
	ZScoreThreshold    float64       `mapstructure:"zscore_threshold"`
	PriceJumpThreshold float64       `mapstructure:"price_jump_threshold"`
}

// SimulatorConfig parameterises the fee what-if model.
type SimulatorConfig struct {
	BaseFeePercent float64 `mapstructure:"base_fee_percent"`
	Elasticity     float64 `mapstructure:"elasticity"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENWATCH")
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

	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultTokens()
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

// DefaultTokens returns the built-in instrument registry used when the
// config file provides none.
func DefaultTokens() []TokenConfig {
	return []TokenConfig{
		{
			Symbol:      "BTC",
			Name:        "Bitcoin",
			BinanceID:   "BTCUSDT",
			CoingeckoID: "bitcoin",
			// WBTC on the pool side
			UniswapID: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599",
		},
		{
			Symbol:      "ETH",
			Name:        "Ethereum",
			BinanceID:   "ETHUSDT",
			CoingeckoID: "ethereum",
			// WETH on the pool side
			UniswapID: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tokenwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x746f6b77))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.retry_delay", "2s")
	v.SetDefault("fetcher.request_timeout", "10s")
	v.SetDefault("fetcher.max_concurrent", 10)
	v.SetDefault("fetcher.user_agent", "tokenwatch/1.0")

	v.SetDefault("sources.binance.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("sources.binance.executable", true)
	v.SetDefault("sources.binance.reference_symbol", "ETHUSDT")
	v.SetDefault("sources.binance.fallback_eth_usd", 2000.0)
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.coingecko.executable", false)
	v.SetDefault("sources.uniswap.subgraph_url", "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3")
	v.SetDefault("sources.uniswap.executable", true)

	v.SetDefault("analytics.lookback", "72h")
	v.SetDefault("analytics.arbitrage_threshold", 0.001)
	v.SetDefault("analytics.zscore_window", 24)
	v.SetDefault("analytics.zscore_threshold", 3.0)
	v.SetDefault("analytics.price_jump_threshold", 0.05)

	v.SetDefault("simulator.base_fee_percent", 0.1)
	v.SetDefault("simulator.elasticity", 0.5)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("fetcher.max_retries must be at least 1")
	}
	if c.Fetcher.MaxConcurrent < 1 {
		return fmt.Errorf("fetcher.max_concurrent must be at least 1")
	}
	if c.Analytics.ArbitrageThreshold < 0 {
		return fmt.Errorf("analytics.arbitrage_threshold cannot be negative")
	}
	if c.Analytics.ZScoreWindow < 2 {
		return fmt.Errorf("analytics.zscore_window must be at least 2")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Simulator.BaseFeePercent <= 0 {
		return fmt.Errorf("simulator.base_fee_percent must be greater than zero")
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for _, tok := range c.Tokens {
		if tok.Symbol == "" {
			return fmt.Errorf("token symbol must not be empty")
		}
		if _, dup := seen[tok.Symbol]; dup {
			return fmt.Errorf("duplicate token symbol %q", tok.Symbol)
		}
		seen[tok.Symbol] = struct{}{}
		if tok.UniswapID != "" && !common.IsHexAddress(tok.UniswapID) {
			return fmt.Errorf("token %s: uniswap_id %q is not a valid contract address", tok.Symbol, tok.UniswapID)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
