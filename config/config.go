package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

var (
	ErrMissingTokenSecret = errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	ErrEqualTokenSecrets  = errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; every key can be overridden by an env var.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	Issuer    string `mapstructure:"ISSUER"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDBName   string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"` // Empty selects the in-process denylist
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	AccessTokenSecret  string        `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `mapstructure:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL    time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	ChallengeTTL       time.Duration `mapstructure:"CHALLENGE_TTL"`
	AuthCodeTTL        time.Duration `mapstructure:"AUTH_CODE_TTL"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	ClientsFile string `mapstructure:"CLIENTS_FILE"`

	WalletDomain    string `mapstructure:"WALLET_DOMAIN"`
	WalletURI       string `mapstructure:"WALLET_URI"`
	WalletStatement string `mapstructure:"WALLET_STATEMENT"`
	WalletChainID   string `mapstructure:"WALLET_CHAIN_ID"`

	TelegramBotToken   string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramMaxAuthAge time.Duration `mapstructure:"TELEGRAM_MAX_AUTH_AGE"`

	OAuthProviders []domain.IdentityProvider `mapstructure:"OAUTH_PROVIDERS"`
	FetchUserInfo  bool                      `mapstructure:"OAUTH_FETCH_USERINFO"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	AuditLogEnabled bool   `mapstructure:"AUDIT_LOG_ENABLED"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ISSUER", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	v.SetDefault("STORAGE_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "data/polkadot-sso.db")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "polkadot_sso")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "polkadot-sso")

	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("CHALLENGE_TTL", 5*time.Minute)
	v.SetDefault("AUTH_CODE_TTL", 5*time.Minute)
	v.SetDefault("SWEEP_INTERVAL", time.Minute)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	v.SetDefault("CLIENTS_FILE", "clients.yaml")

	v.SetDefault("WALLET_DOMAIN", "localhost")
	v.SetDefault("WALLET_URI", "http://localhost:8080")
	v.SetDefault("WALLET_STATEMENT", "Sign in with your Polkadot account.")
	v.SetDefault("WALLET_CHAIN_ID", "polkadot")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_MAX_AUTH_AGE", 5*time.Minute)

	v.SetDefault("OAUTH_PROVIDERS", []map[string]any{})
	v.SetDefault("OAUTH_FETCH_USERINFO", false)

	v.SetDefault("OTEL_SERVICE_NAME", "polkadot-sso")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("AUDIT_LOG_ENABLED", true)
}

// LoadConfig reads configuration from file, environment variables, and defaults.
// An empty configFile searches /etc/polkadot-sso, $HOME/.polkadot-sso and the working
// directory for config.yaml; a missing file is not an error in that case.
func LoadConfig(configFile string) (*ServerConfig, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/polkadot-sso/")
		v.AddConfigPath("$HOME/.polkadot-sso")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return ErrMissingTokenSecret
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrEqualTokenSecrets
	}

	switch c.StorageDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDBName == "" {
			return errors.New("MONGO_URI and MONGO_DB_NAME are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}

	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}

	seen := make(map[string]bool, len(c.OAuthProviders))
	for _, p := range c.OAuthProviders {
		if p.Name == "" || p.ClientID == "" {
			return errors.New("every OAUTH_PROVIDERS entry needs name and client_id")
		}

		if seen[p.Name] {
			return fmt.Errorf("duplicate OAuth provider %q", p.Name)
		}

		seen[p.Name] = true
	}

	return nil
}

// ProviderChallengeTTLs collects per-provider challenge lifetimes.
func (c *ServerConfig) ProviderChallengeTTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration)

	for _, p := range c.OAuthProviders {
		if p.ChallengeTTL > 0 {
			ttls[p.Name] = p.ChallengeTTL
		}
	}

	return ttls
}
