package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Adoption  AdoptionSettings  `mapstructure:"adoption"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing attempt tracking and
// the HTTP sliding-window limiter.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the Kafka producer. With no brokers configured the
// service falls back to a logging publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	KeyDirectory   string        `mapstructure:"key_directory"`
	ActiveKeyID    string        `mapstructure:"active_key_id"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LimiterSettings describes one attempt limiter: the sliding window, the
// attempt budget inside it, and the lockout applied once the budget is spent.
type LimiterSettings struct {
	Window      time.Duration `mapstructure:"window"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Lockout     time.Duration `mapstructure:"lockout"`
}

// RateLimitSettings configures the per-action attempt limiters and the
// per-client HTTP throttle.
type RateLimitSettings struct {
	Login          LimiterSettings `mapstructure:"login"`
	BearerAuth     LimiterSettings `mapstructure:"bearer_auth"`
	Registration   LimiterSettings `mapstructure:"registration"`
	AdoptionCreate LimiterSettings `mapstructure:"adoption_create"`
	AdoptionUpdate LimiterSettings `mapstructure:"adoption_update"`
	HTTPWindow     time.Duration   `mapstructure:"http_window"`
	HTTPMax        int             `mapstructure:"http_max"`
}

// AdoptionSettings holds lifecycle tunables.
type AdoptionSettings struct {
	FollowUpLimit int `mapstructure:"follow_up_limit"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ADOPT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.key_directory",
		"jwt.active_key_id",
		"jwt.access_token_ttl",
		"rate_limit.login.window",
		"rate_limit.login.max_attempts",
		"rate_limit.login.lockout",
		"rate_limit.bearer_auth.window",
		"rate_limit.bearer_auth.max_attempts",
		"rate_limit.bearer_auth.lockout",
		"rate_limit.registration.window",
		"rate_limit.registration.max_attempts",
		"rate_limit.registration.lockout",
		"rate_limit.adoption_create.window",
		"rate_limit.adoption_create.max_attempts",
		"rate_limit.adoption_create.lockout",
		"rate_limit.adoption_update.window",
		"rate_limit.adoption_update.max_attempts",
		"rate_limit.adoption_update.lockout",
		"rate_limit.http_window",
		"rate_limit.http_max",
		"adoption.follow_up_limit",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "adoption-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "adopt")
	v.SetDefault("postgres.password", "adopt_password")
	v.SetDefault("postgres.database", "adopt")
	v.SetDefault("postgres.schema", "adopt")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "adopt")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "adoption")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.active_key_id", "primary")
	v.SetDefault("jwt.access_token_ttl", "15m")

	v.SetDefault("rate_limit.login.window", "15m")
	v.SetDefault("rate_limit.login.max_attempts", 5)
	v.SetDefault("rate_limit.login.lockout", "30m")
	v.SetDefault("rate_limit.bearer_auth.window", "15m")
	v.SetDefault("rate_limit.bearer_auth.max_attempts", 30)
	v.SetDefault("rate_limit.bearer_auth.lockout", "15m")
	v.SetDefault("rate_limit.registration.window", "1h")
	v.SetDefault("rate_limit.registration.max_attempts", 10)
	v.SetDefault("rate_limit.registration.lockout", "0s")
	v.SetDefault("rate_limit.adoption_create.window", "24h")
	v.SetDefault("rate_limit.adoption_create.max_attempts", 10)
	v.SetDefault("rate_limit.adoption_create.lockout", "1h")
	v.SetDefault("rate_limit.adoption_update.window", "1m")
	v.SetDefault("rate_limit.adoption_update.max_attempts", 30)
	v.SetDefault("rate_limit.adoption_update.lockout", "5m")
	v.SetDefault("rate_limit.http_window", "1m")
	v.SetDefault("rate_limit.http_max", 120)

	v.SetDefault("adoption.follow_up_limit", 100)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
