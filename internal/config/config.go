// Package config loads process settings from an optional YAML file and
// STOCKROOM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOCKROOM"

type Config struct {
	Env       string          `mapstructure:"env"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Auth      AuthConfig      `mapstructure:"auth"`
	PG        PGConfig        `mapstructure:"pg"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

type GRPCConfig struct {
	Addr         string        `mapstructure:"addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AuthConfig has no token lifetime: sessions always last auth.DefaultTokenTTL.
type AuthConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
	HashSlots  int    `mapstructure:"hash_slots"`
}

type PGConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type GatewayConfig struct {
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

type RateLimitConfig struct {
	Limit         int           `mapstructure:"limit"`
	Window        time.Duration `mapstructure:"window"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

type TracingConfig struct {
	// Exporter is one of none, log or stdout.
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

var defaults = map[string]any{
	"env":                      "prod",
	"log.level":                "info",
	"http.addr":                ":8080",
	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,
	"http.max_body_bytes":      int64(1 << 20),
	"http.cors_origins":        []string{},
	"http.trusted_proxies":     []string{},
	"grpc.addr":                ":9090",
	"grpc.poll_interval":       5 * time.Second,
	"auth.secret":              "",
	"auth.issuer":              "stockroom",
	"auth.bcrypt_cost":         10,
	"auth.hash_slots":          0,
	"pg.dsn":                   "",
	"pg.max_open_conns":        20,
	"pg.max_idle_conns":        10,
	"pg.conn_max_lifetime":     15 * time.Minute,
	"pg.conn_max_idle_time":    5 * time.Minute,
	"gateway.acquire_timeout":  2 * time.Second,
	"gateway.call_timeout":     time.Duration(0),
	"ratelimit.limit":          120,
	"ratelimit.window":         time.Minute,
	"ratelimit.redis_addr":     "",
	"ratelimit.redis_password": "",
	"ratelimit.redis_db":       0,
	"tracing.exporter":         "log",
	"tracing.sample_ratio":     1.0,
}

// Load reads path (when non-empty) and overlays the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.PG.DSN = strings.TrimSpace(cfg.PG.DSN)
	return cfg, nil
}

// Validate refuses configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret (STOCKROOM_AUTH_SECRET) is required"))
	}
	if c.PG.DSN == "" {
		errs = append(errs, errors.New("pg.dsn (STOCKROOM_PG_DSN) is required"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "none", "log", "stdout":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q must be none, log or stdout", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be within (0, 1]"))
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive when a limit is set"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the process runs in development mode.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "dev")
}
