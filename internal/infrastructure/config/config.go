package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Gateway     GatewayConfig  `mapstructure:"gateway"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Notify      NotifyConfig   `mapstructure:"notify"`
	Alert       AlertConfig    `mapstructure:"alert"`
	Security    SecurityConfig `mapstructure:"security"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// GatewayConfig points at the node gateway fronting the external ledger
type GatewayConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	TreasuryAddress string `mapstructure:"treasury_address"`
	TreasuryKeyRef  string `mapstructure:"treasury_key_ref"`
	RequestsPerSec  int    `mapstructure:"requests_per_sec"`
}

// EngineConfig holds the settlement engine parameters
type EngineConfig struct {
	// Amounts are in the chain's base unit.
	MinDeposit    string `mapstructure:"min_deposit"`
	MinWithdrawal string `mapstructure:"min_withdrawal"`

	ReferralRate     float64 `mapstructure:"referral_rate"`
	GrowthPeriodDays float64 `mapstructure:"growth_period_days"`

	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`

	RetryMaxAttempts   int     `mapstructure:"retry_max_attempts"`
	RetryBackoffMillis int     `mapstructure:"retry_backoff_millis"`
	RetryMultiplier    float64 `mapstructure:"retry_multiplier"`

	ConfirmPollSeconds    int `mapstructure:"confirm_poll_seconds"`
	ConfirmTimeoutSeconds int `mapstructure:"confirm_timeout_seconds"`

	SweepConcurrency int `mapstructure:"sweep_concurrency"`

	// Background job schedules, cron expressions.
	BalanceRefreshSchedule string `mapstructure:"balance_refresh_schedule"`
	AutoWithdrawSchedule   string `mapstructure:"auto_withdraw_schedule"`
	AutoReinvestSchedule   string `mapstructure:"auto_reinvest_schedule"`
	ReminderSchedule       string `mapstructure:"reminder_schedule"`
	ReconcileSchedule      string `mapstructure:"reconcile_schedule"`
}

// LockTimeout returns the guard timeout as a duration
func (e EngineConfig) LockTimeout() time.Duration {
	return time.Duration(e.LockTimeoutSeconds) * time.Second
}

// ConfirmPollInterval returns the confirmation poll cadence
func (e EngineConfig) ConfirmPollInterval() time.Duration {
	return time.Duration(e.ConfirmPollSeconds) * time.Second
}

// ConfirmTimeout returns the total confirmation wait budget
func (e EngineConfig) ConfirmTimeout() time.Duration {
	return time.Duration(e.ConfirmTimeoutSeconds) * time.Second
}

type NotifyConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type AlertConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	ToEmail   string `mapstructure:"to_email"`
}

type SecurityConfig struct {
	// KeyPassphrase seals custodial secrets at rest
	KeyPassphrase string `mapstructure:"key_passphrase"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load reads configuration from config.yaml and the environment
func Load() (*Config, error) {
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if c.Gateway.TreasuryAddress == "" {
		return fmt.Errorf("gateway.treasury_address is required")
	}
	if c.Engine.ReferralRate < 0 || c.Engine.ReferralRate >= 1 {
		return fmt.Errorf("engine.referral_rate must be in [0, 1)")
	}
	if c.Engine.GrowthPeriodDays <= 0 {
		return fmt.Errorf("engine.growth_period_days must be positive")
	}
	if c.Security.KeyPassphrase == "" && c.Environment == "production" {
		return fmt.Errorf("security.key_passphrase is required in production")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	// Database defaults
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Auth defaults
	viper.SetDefault("auth.issuer", "harvest_service")

	// Gateway defaults
	viper.SetDefault("gateway.timeout_seconds", 30)
	viper.SetDefault("gateway.requests_per_sec", 10)

	// Engine defaults. Amounts in base units; the reference deployment uses
	// a 6-decimal chain, so 1_000_000 is one display unit.
	viper.SetDefault("engine.min_deposit", "1000000")
	viper.SetDefault("engine.min_withdrawal", "1000000")
	viper.SetDefault("engine.referral_rate", 0.06)
	viper.SetDefault("engine.growth_period_days", 10.0)
	viper.SetDefault("engine.lock_timeout_seconds", 300)
	viper.SetDefault("engine.retry_max_attempts", 3)
	viper.SetDefault("engine.retry_backoff_millis", 500)
	viper.SetDefault("engine.retry_multiplier", 2.0)
	viper.SetDefault("engine.confirm_poll_seconds", 5)
	viper.SetDefault("engine.confirm_timeout_seconds", 120)
	viper.SetDefault("engine.sweep_concurrency", 4)
	viper.SetDefault("engine.balance_refresh_schedule", "*/10 * * * *")
	viper.SetDefault("engine.auto_withdraw_schedule", "5 * * * *")
	viper.SetDefault("engine.auto_reinvest_schedule", "35 * * * *")
	viper.SetDefault("engine.reminder_schedule", "0 12 * * *")
	viper.SetDefault("engine.reconcile_schedule", "*/15 * * * *")

	// Notify defaults
	viper.SetDefault("notify.timeout_seconds", 5)

	// Alert defaults
	viper.SetDefault("alert.provider", "")
	viper.SetDefault("alert.from_name", "Harvest Alerts")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)
}
