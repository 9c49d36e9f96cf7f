package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	LoginAttempts int
	LoginWindow   time.Duration
}

type LogConfig struct {
	Level string
}

// EventsConfig names the redis stream that carries user lifecycle events.
type EventsConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Log              LogConfig
	Events           EventsConfig
	AllowCORSOrigins []string
}

// Load reads configuration from .env, an optional config.yaml and the
// environment, then validates it. A non-nil error means the process must not
// start serving.
func Load() (*AppConfig, error) {
	v, err := read()
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

// LoadWorker is Load for the event worker, which needs redis but no database.
func LoadWorker() (*AppConfig, error) {
	v, err := read()
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*AppConfig, error) {
	v.SetEnvPrefix("USERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		if cfg.Environment != "production" {
			cfg.Log.Level = "debug"
		}
	}

	return &cfg, nil
}

// ValidateWorker checks what the event worker depends on.
func (c *AppConfig) ValidateWorker() error {
	var errs []error
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr (REDIS_ADDR) is required"))
	}
	if c.Events.Stream == "" || c.Events.Group == "" || c.Events.Consumer == "" {
		errs = append(errs, errors.New("events.stream, events.group and events.consumer are required"))
	}
	if c.Events.ClaimInterval <= 0 {
		errs = append(errs, errors.New("events.claiminterval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) is required"))
		} else if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) must be a valid URL"))
		}
	case DriverSQLite:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}

	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwtsecret (JWT_SECRET) is required"))
	}
	// bcrypt silently swaps costs below MinCost for its default.
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("security.bcryptcost (BCRYPT_SALT_ROUNDS) must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Security.TokenTTL <= 0 {
		errs = append(errs, errors.New("security.tokenttl (JWT_TTL) must be positive"))
	}
	if c.Security.LoginAttempts < 0 {
		errs = append(errs, errors.New("security.loginattempts must not be negative"))
	}
	if c.Security.LoginAttempts > 0 && c.Security.LoginWindow <= 0 {
		errs = append(errs, errors.New("security.loginwindow must be positive"))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, errors.New("http.port (PORT) must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3333)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.maxconns", 10)
	v.SetDefault("database.minconns", 1)
	v.SetDefault("database.connmaxlifetime", "30m")

	v.SetDefault("redis.db", 0)

	v.SetDefault("security.tokenttl", "24h")
	v.SetDefault("security.bcryptcost", 10)
	v.SetDefault("security.loginattempts", 10)
	v.SetDefault("security.loginwindow", "1m")

	v.SetDefault("events.stream", "users:events")
	v.SetDefault("events.group", "audit")
	v.SetDefault("events.consumer", "worker-1")
	v.SetDefault("events.claiminterval", "30s")
}

// bindEnv maps the conventional unprefixed variable names onto config keys.
// The USERS_-prefixed form wins when both are set.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"environment":         {"USERS_ENVIRONMENT", "APP_ENV"},
		"database.url":        {"USERS_DATABASE_URL", "DATABASE_URL"},
		"database.driver":     {"USERS_DATABASE_DRIVER", "DATABASE_DRIVER"},
		"security.jwtsecret":  {"USERS_SECURITY_JWTSECRET", "JWT_SECRET"},
		"security.bcryptcost": {"USERS_SECURITY_BCRYPTCOST", "BCRYPT_SALT_ROUNDS"},
		"security.tokenttl":   {"USERS_SECURITY_TOKENTTL", "JWT_TTL"},
		"http.port":           {"USERS_HTTP_PORT", "PORT"},
		"redis.addr":          {"USERS_REDIS_ADDR", "REDIS_ADDR"},
		"redis.password":      {"USERS_REDIS_PASSWORD", "REDIS_PASSWORD"},
		"log.level":           {"USERS_LOG_LEVEL", "LOG_LEVEL"},
		"allowcorsorigins":    {"USERS_ALLOWCORSORIGINS", "CORS_ORIGINS"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
