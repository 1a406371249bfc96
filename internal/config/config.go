package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	Dealer    DealerConfig    `mapstructure:"dealer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	// When false, unauthenticated requests are rejected only on routes that
	// need a caller identity.
	RequireAddress bool   `mapstructure:"require_address"`
	AdminKey       string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LedgerConfig struct {
	Name          string `mapstructure:"name"`
	Symbol        string `mapstructure:"symbol"`
	InitialSupply string `mapstructure:"initial_supply"`
	// Admin receives the initial supply and the DEFAULT_ADMIN_ROLE.
	Admin string `mapstructure:"admin"`
	// Address identifies the token ledger itself; multisig proposals carry
	// it as their target.
	Address string `mapstructure:"address"`
}

type OracleConfig struct {
	// Identity is the address the fulfillment callback must authenticate as.
	Identity string `mapstructure:"identity"`
	Endpoint string `mapstructure:"endpoint"`
	// RequestTTLSeconds frees the per-requester slot for requests the oracle
	// never answers. 0 disables expiry.
	RequestTTLSeconds int `mapstructure:"request_ttl_seconds"`
	// LocalMode generates request ids locally and auto-fulfills with
	// crypto/rand words. Development only.
	LocalMode bool `mapstructure:"local_mode"`
}

type TreasuryConfig struct {
	// Address is the treasury's own ledger identity; it holds the mint and
	// burn capabilities and owns its broker requests.
	Address            string   `mapstructure:"address"`
	Owners             []string `mapstructure:"owners"`
	RequiredSignatures int      `mapstructure:"required_signatures"`
	CooldownSeconds    int      `mapstructure:"cooldown_seconds"`
	RandomEventAmount  string   `mapstructure:"random_event_amount"`
	Beneficiary        string   `mapstructure:"beneficiary"`
}

type DealerConfig struct {
	// House holds escrowed bets and funds payouts.
	House  string `mapstructure:"house"`
	MinBet string `mapstructure:"min_bet"`
	MaxBet string `mapstructure:"max_bet"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. BISCAGATE_ORACLE_IDENTITY
	viper.SetEnvPrefix("biscagate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("auth.require_address", true)
	viper.SetDefault("ledger.name", "Bisca Token")
	viper.SetDefault("ledger.symbol", "BISCA")
	viper.SetDefault("ledger.initial_supply", "1000000")
	viper.SetDefault("oracle.request_ttl_seconds", 0)
	viper.SetDefault("oracle.local_mode", false)
	viper.SetDefault("treasury.required_signatures", 2)
	viper.SetDefault("treasury.cooldown_seconds", 86400)
	viper.SetDefault("treasury.random_event_amount", "1000")
	viper.SetDefault("dealer.min_bet", "1")
	viper.SetDefault("dealer.max_bet", "100000")
	viper.SetDefault("rate_limit.qps", 20)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would weaken the oracle callback
// authentication. The fulfillment caller is compared against
// oracle.identity; an unset value would resolve to the zero address and let
// any caller with a zeroed identity fulfill requests.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Oracle.Identity) {
		return fmt.Errorf("oracle.identity %q is not a valid address", c.Oracle.Identity)
	}
	if common.HexToAddress(c.Oracle.Identity) == (common.Address{}) {
		return fmt.Errorf("oracle.identity must not be the zero address")
	}
	return nil
}
