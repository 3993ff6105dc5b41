// Package config загружает настройки процесса из переменных окружения
// и точечную политику начислений из файла (policy.go).
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config собирает все секции настроек.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	HTTP          HTTPConfig
	Gamification  GamificationConfig
	Features      *FeatureFlags
	Observability ObservabilityConfig
}

type AppConfig struct {
	Name            string
	Environment     Environment
	Debug           bool
	Version         string
	ShutdownTimeout time.Duration
}

// DatabaseConfig: Driver выбирает хранилище, URL нужен только postgres,
// SQLitePath может быть ":memory:".
type DatabaseConfig struct {
	Driver     string
	URL        string
	SQLitePath string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig описывает кеш лидерборда. Disabled отключает кеш полностью.
type RedisConfig struct {
	URL          string
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	Disabled     bool
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type HTTPConfig struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// GamificationConfig: календарные дни серий считаются в Location.
type GamificationConfig struct {
	Timezone string
	Location *time.Location

	// PolicyFile - необязательный yaml/toml/json с переопределением очков.
	PolicyFile string

	LeaderboardCacheTTL time.Duration
	BadgeParallelism    int
}

type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// ═══════════════════════════════════════════════════════════════════════════
// Загрузка
// ═══════════════════════════════════════════════════════════════════════════

// envDefaults - все переменные окружения, которые читает процесс.
var envDefaults = map[string]any{
	"APP_NAME":             "alem-gamification",
	"APP_ENV":              string(EnvDevelopment),
	"APP_DEBUG":            false,
	"APP_VERSION":          "0.1.0",
	"APP_SHUTDOWN_TIMEOUT": 30 * time.Second,

	"DB_PORT":               "5432",
	"DB_NAME":               "postgres",
	"DB_SSLMODE":            "require",
	"SQLITE_PATH":           "gamification.db",
	"DB_MAX_CONNS":          25,
	"DB_MIN_CONNS":          2,
	"DB_CONN_MAX_LIFETIME":  5 * time.Minute,
	"DB_CONN_MAX_IDLE_TIME": time.Minute,

	"REDIS_HOST":          "localhost",
	"REDIS_PORT":          6379,
	"REDIS_DB":            0,
	"REDIS_POOL_SIZE":     10,
	"REDIS_DIAL_TIMEOUT":  5 * time.Second,
	"REDIS_READ_TIMEOUT":  time.Second,
	"REDIS_WRITE_TIMEOUT": time.Second,
	"REDIS_KEY_PREFIX":    "gamification:",
	"REDIS_DISABLED":      false,

	"HTTP_ADDR":                ":8080",
	"HTTP_READ_TIMEOUT":        10 * time.Second,
	"HTTP_READ_HEADER_TIMEOUT": 5 * time.Second,
	"HTTP_WRITE_TIMEOUT":       15 * time.Second,
	"HTTP_IDLE_TIMEOUT":        time.Minute,

	"APP_TIMEZONE":          "Asia/Almaty",
	"LEADERBOARD_CACHE_TTL": 5 * time.Minute,
	"BADGE_PARALLELISM":     4,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// newEnv returns a viper instance bound to the process environment.
// Empty variables count as unset.
func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, val := range envDefaults {
		v.SetDefault(key, val)
	}
	return v
}

// Load читает окружение и проверяет результат.
func Load() (*Config, error) {
	env := newEnv()

	cfg := &Config{
		App:           appConfig(env),
		Database:      databaseConfig(env),
		Redis:         redisConfig(env),
		HTTP:          httpConfig(env),
		Features:      loadFeatureFlags(env),
		Observability: ObservabilityConfig{LogLevel: env.GetString("LOG_LEVEL"), LogFormat: env.GetString("LOG_FORMAT")},
	}

	var err error
	if cfg.Gamification, err = gamificationConfig(env); err != nil {
		return nil, fmt.Errorf("gamification config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func appConfig(env *viper.Viper) AppConfig {
	environment := Environment(env.GetString("APP_ENV"))
	return AppConfig{
		Name:            env.GetString("APP_NAME"),
		Environment:     environment,
		Debug:           environment == EnvDevelopment || env.GetBool("APP_DEBUG"),
		Version:         env.GetString("APP_VERSION"),
		ShutdownTimeout: env.GetDuration("APP_SHUTDOWN_TIMEOUT"),
	}
}

// databaseConfig prefers DATABASE_URL and falls back to assembling one from
// DB_HOST/DB_USER. Without any postgres URL the embedded store is the default.
func databaseConfig(env *viper.Viper) DatabaseConfig {
	url := env.GetString("DATABASE_URL")
	if host, user := env.GetString("DB_HOST"), env.GetString("DB_USER"); url == "" && host != "" && user != "" {
		url = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
			user, env.GetString("DB_PASSWORD"),
			net.JoinHostPort(host, env.GetString("DB_PORT")),
			env.GetString("DB_NAME"), env.GetString("DB_SSLMODE"))
	}

	driver := DriverSQLite
	if url != "" {
		driver = DriverPostgres
	}
	if explicit := env.GetString("DB_DRIVER"); explicit != "" {
		driver = strings.ToLower(explicit)
	}

	return DatabaseConfig{
		Driver:          driver,
		URL:             url,
		SQLitePath:      env.GetString("SQLITE_PATH"),
		MaxConns:        env.GetInt("DB_MAX_CONNS"),
		MinConns:        env.GetInt("DB_MIN_CONNS"),
		ConnMaxLifetime: env.GetDuration("DB_CONN_MAX_LIFETIME"),
		ConnMaxIdleTime: env.GetDuration("DB_CONN_MAX_IDLE_TIME"),
	}
}

func redisConfig(env *viper.Viper) RedisConfig {
	return RedisConfig{
		URL:          env.GetString("REDIS_URL"),
		Host:         env.GetString("REDIS_HOST"),
		Port:         env.GetInt("REDIS_PORT"),
		Password:     env.GetString("REDIS_PASSWORD"),
		DB:           env.GetInt("REDIS_DB"),
		PoolSize:     env.GetInt("REDIS_POOL_SIZE"),
		DialTimeout:  env.GetDuration("REDIS_DIAL_TIMEOUT"),
		ReadTimeout:  env.GetDuration("REDIS_READ_TIMEOUT"),
		WriteTimeout: env.GetDuration("REDIS_WRITE_TIMEOUT"),
		KeyPrefix:    env.GetString("REDIS_KEY_PREFIX"),
		Disabled:     env.GetBool("REDIS_DISABLED"),
	}
}

func httpConfig(env *viper.Viper) HTTPConfig {
	return HTTPConfig{
		Addr:              env.GetString("HTTP_ADDR"),
		ReadTimeout:       env.GetDuration("HTTP_READ_TIMEOUT"),
		ReadHeaderTimeout: env.GetDuration("HTTP_READ_HEADER_TIMEOUT"),
		WriteTimeout:      env.GetDuration("HTTP_WRITE_TIMEOUT"),
		IdleTimeout:       env.GetDuration("HTTP_IDLE_TIMEOUT"),
	}
}

func gamificationConfig(env *viper.Viper) (GamificationConfig, error) {
	tz := env.GetString("APP_TIMEZONE")
	// Неверная зона незаметно сдвигает границы всех серий, поэтому падаем сразу.
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return GamificationConfig{}, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	return GamificationConfig{
		Timezone:            tz,
		Location:            loc,
		PolicyFile:          env.GetString("POLICY_FILE"),
		LeaderboardCacheTTL: env.GetDuration("LEADERBOARD_CACHE_TTL"),
		BadgeParallelism:    env.GetInt("BADGE_PARALLELISM"),
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Проверка
// ═══════════════════════════════════════════════════════════════════════════

// Validate returns every problem at once, combined with multierr.
func (c *Config) Validate() error {
	var errs error
	fail := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			fail("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			fail("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
		if c.App.Environment == EnvProduction && c.Database.SQLitePath == ":memory:" {
			fail("in-memory SQLite is not allowed in production")
		}
	default:
		fail("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	if c.Gamification.LeaderboardCacheTTL < 0 {
		fail("LEADERBOARD_CACHE_TTL cannot be negative")
	}
	if c.Gamification.BadgeParallelism < 1 {
		fail("BADGE_PARALLELISM must be at least 1")
	}
	if f := c.Observability.LogFormat; f != "json" && f != "text" {
		fail("LOG_FORMAT must be json or text, got %q", f)
	}
	if c.HTTP.Addr == "" {
		fail("HTTP_ADDR is required")
	}
	return errs
}
