package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// App holds application metadata.
type App struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// Logger holds logger configuration.
type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Database holds PostgreSQL configuration.
type Database struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	TimeZone        string        `mapstructure:"time_zone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the gorm/pgx keyword DSN.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}

// URL returns the postgres:// form used by golang-migrate.
func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Redis holds Redis configuration. An empty Host disables Redis.
type Redis struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// API holds HTTP server configuration.
type API struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Auth holds password hashing and token settings.
type Auth struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

// Market holds the Alpha Vantage client settings.
type Market struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// Symbols holds the symbol directory source.
type Symbols struct {
	SourceURL    string `mapstructure:"source_url"`
	Suffix       string `mapstructure:"suffix"`
	SyncSchedule string `mapstructure:"sync_schedule"`
	SearchLimit  int    `mapstructure:"search_limit"`
}

// Migrations holds the golang-migrate source location.
type Migrations struct {
	Path string `mapstructure:"path"`
}

// Config is the full application configuration. It is loaded once and passed
// to every component at construction.
type Config struct {
	App        App        `mapstructure:"app"`
	Logger     Logger     `mapstructure:"logger"`
	Database   Database   `mapstructure:"database"`
	Redis      Redis      `mapstructure:"redis"`
	API        API        `mapstructure:"api"`
	Auth       Auth       `mapstructure:"auth"`
	Market     Market     `mapstructure:"market"`
	Symbols    Symbols    `mapstructure:"symbols"`
	Migrations Migrations `mapstructure:"migrations"`
}

// legacyEnv maps config keys to the variable names older .env files use.
var legacyEnv = map[string]string{
	"database.host":     "DB_HOST",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"database.port":     "DB_PORT",
	"auth.jwt_secret":   "JWT_SECRET",
	"market.api_key":    "ALPHA_VANTAGE_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "portfolio-tracker")
	v.SetDefault("app.env", "development")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "portfolio")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.time_zone", "Asia/Kolkata")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("api.host", "")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", 24*time.Hour)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	v.SetDefault("market.base_url", "https://www.alphavantage.co")
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.max_request_per_minute", 5)
	v.SetDefault("market.cache_ttl", 5*time.Minute)
	v.SetDefault("market.request_timeout", 10*time.Second)

	v.SetDefault("symbols.source_url", "https://archives.nseindia.com/content/equities/EQUITY_L.csv")
	v.SetDefault("symbols.suffix", ".NS")
	v.SetDefault("symbols.sync_schedule", "")
	v.SetDefault("symbols.search_limit", 10)

	v.SetDefault("migrations.path", "file://migrations")
}

// Load reads an optional .env file, an optional YAML file at path and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttls must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Market.MaxRequestPerMinute <= 0 {
		errs = append(errs, errors.New("market.max_request_per_minute must be positive"))
	}
	return errors.Join(errs...)
}
