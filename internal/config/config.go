// Package config loads the engine configuration from a YAML file and
// environment variables. Environment variables win; secrets (the wallet
// key, database passwords) are env-only and never read from the file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	Jupiter   JupiterConfig   `mapstructure:"jupiter"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig defines the HTTP operator surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// EngineConfig defines the scheduling and budget policy.
type EngineConfig struct {
	CycleInterval      time.Duration `mapstructure:"cycle_interval"`
	TrackingInterval   time.Duration `mapstructure:"tracking_interval"`
	DailyCapUsd        float64       `mapstructure:"daily_cap_usd"`
	TakeProfitMultiple float64       `mapstructure:"take_profit_multiple"`
	OpeningGrace       time.Duration `mapstructure:"opening_grace"`
	Timezone           string        `mapstructure:"timezone"`
}

// EvaluatorConfig defines admission filters and tier sizing.
type EvaluatorConfig struct {
	MinLiquidityUsd float64       `mapstructure:"min_liquidity_usd"`
	MinVolumeUsd    float64       `mapstructure:"min_volume_usd"`
	MaxListingAge   time.Duration `mapstructure:"max_listing_age"`
	TierDAmountUsd  float64       `mapstructure:"tier_d_amount_usd"`
	TierCAmountUsd  float64       `mapstructure:"tier_c_amount_usd"`
	TierAAmountUsd  float64       `mapstructure:"tier_a_amount_usd"`
}

// ExecutorConfig defines swap execution policy. Mode is "simulated" or
// "live"; live requires a wallet secret.
type ExecutorConfig struct {
	Mode            string        `mapstructure:"mode"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
}

// SolanaConfig defines RPC access and the trading wallet.
type SolanaConfig struct {
	RPCEndpoints []string `mapstructure:"rpc_endpoints"`
	WSEndpoint   string   `mapstructure:"ws_endpoint"`
	// WalletSecret is the base58 64-byte secret key. Env-only
	// (SOLANA_WALLET_SECRET), required in live mode.
	WalletSecret string `mapstructure:"wallet_secret"`
}

// JupiterConfig defines the swap aggregator endpoints.
type JupiterConfig struct {
	QuoteURL    string `mapstructure:"quote_url"`
	SwapURL     string `mapstructure:"swap_url"`
	SlippageBps int    `mapstructure:"slippage_bps"`
}

// StorageConfig selects the persistence backend. "memory" runs
// everything in-process; "postgres" adds ClickHouse for the price
// observation trail.
type StorageConfig struct {
	Backend     string           `mapstructure:"backend"`
	PostgresDSN string           `mapstructure:"postgres_dsn"`
	ClickHouse  ClickHouseConfig `mapstructure:"clickhouse"`
}

// ClickHouseConfig defines the analytics store connection.
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from an optional config.yaml in path plus
// the environment. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("engine.cycle_interval", "60s")
	v.SetDefault("engine.tracking_interval", "60s")
	v.SetDefault("engine.daily_cap_usd", 2000.0)
	v.SetDefault("engine.take_profit_multiple", 3.0)
	v.SetDefault("engine.opening_grace", "5m")
	v.SetDefault("engine.timezone", "UTC")

	v.SetDefault("evaluator.min_liquidity_usd", 1000.0)
	v.SetDefault("evaluator.min_volume_usd", 1000.0)
	v.SetDefault("evaluator.max_listing_age", "24h")
	v.SetDefault("evaluator.tier_d_amount_usd", 5.0)
	v.SetDefault("evaluator.tier_c_amount_usd", 3.0)
	v.SetDefault("evaluator.tier_a_amount_usd", 1.0)

	v.SetDefault("executor.mode", "simulated")
	v.SetDefault("executor.max_attempts", 5)
	v.SetDefault("executor.initial_backoff", "1s")
	v.SetDefault("executor.max_backoff", "30s")
	v.SetDefault("executor.confirm_timeout", "60s")
	v.SetDefault("executor.confirm_interval", "2s")

	v.SetDefault("solana.rpc_endpoints", []string{"https://api.mainnet-beta.solana.com"})
	v.SetDefault("solana.ws_endpoint", "")

	v.SetDefault("jupiter.quote_url", "https://quote-api.jup.ag/v6/quote")
	v.SetDefault("jupiter.swap_url", "https://quote-api.jup.ag/v6/swap")
	v.SetDefault("jupiter.slippage_bps", 100)

	v.SetDefault("storage.backend", "memory")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func (c *Config) validate() error {
	switch c.Executor.Mode {
	case "simulated":
	case "live":
		if c.Solana.WalletSecret == "" {
			return fmt.Errorf("live executor requires SOLANA_WALLET_SECRET")
		}
	default:
		return fmt.Errorf("unknown executor mode %q", c.Executor.Mode)
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires storage.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Executor.MaxAttempts < 1 {
		return fmt.Errorf("executor max attempts must be at least 1, got %d", c.Executor.MaxAttempts)
	}
	if c.Engine.DailyCapUsd <= 0 {
		return fmt.Errorf("daily cap must be positive, got %f", c.Engine.DailyCapUsd)
	}
	if c.Engine.TakeProfitMultiple <= 1 {
		return fmt.Errorf("take-profit multiple must exceed 1, got %f", c.Engine.TakeProfitMultiple)
	}
	if len(c.Solana.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	return nil
}
