package config

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DASHBOARD_DATABASE_DSN
const EnvPrefix = "DASHBOARD"

const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	Provider ProviderConfig `mapstructure:"provider"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	SigningKey       string        `mapstructure:"signing_key"`
	Issuer           string        `mapstructure:"issuer"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	CoolDown         time.Duration `mapstructure:"cool_down"`
}

type SessionConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	ProvisionWait time.Duration `mapstructure:"provision_wait"`
	SignInPath    string        `mapstructure:"sign_in_path"`
}

type ProviderConfig struct {
	// ProvisionDelay emulates the lag of the profile provisioning trigger
	ProvisionDelay time.Duration `mapstructure:"provision_delay"`
}

type CacheConfig struct {
	Kind string        `mapstructure:"kind"`
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "file:dashboard.db?cache=shared")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "go-dashboard-auth")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.cool_down", 15*time.Minute)
	v.SetDefault("session.debounce", 500*time.Millisecond)
	v.SetDefault("session.provision_wait", time.Second)
	v.SetDefault("session.sign_in_path", "")
	v.SetDefault("provider.provision_delay", 300*time.Millisecond)
	v.SetDefault("cache.kind", CacheNone)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
}

// Load reads defaults, then the optional config file, then DASHBOARD_*
// environment overrides. An empty path searches for config.yaml in the
// working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !goerrors.As(err, &notFound) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the components can not default themselves
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return goerrors.New("database.dsn is required", goerrors.CategoryValidation)
	}

	switch c.Cache.Kind {
	case CacheNone, CacheLRU, CacheRedis:
	default:
		return goerrors.New("cache.kind must be one of none, lru, redis", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"cache.kind": c.Cache.Kind})
	}

	if c.Cache.Kind == CacheRedis && c.Redis.Addr == "" {
		return goerrors.New("redis.addr is required when cache.kind is redis", goerrors.CategoryValidation)
	}
	return nil
}
