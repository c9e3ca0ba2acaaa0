package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Reporting    ReportingConfig
	Audience     AudienceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadJWT reads only the token settings, for tools that never touch the database.
func LoadJWT() (*JWTConfig, error) {
	var cfg JWTConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing jwt config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ALLOCATIONS_APP_ENV" required:"true"`
	Port         string `envconfig:"ALLOCATIONS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ALLOCATIONS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ALLOCATIONS_LOG_WARN_STACK" default:"false"`
	// Comma separated list of origins allowed to call the console API.
	CORSOrigins []string `envconfig:"ALLOCATIONS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"ALLOCATIONS_DB_DSN"`
	Driver     string `envconfig:"ALLOCATIONS_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"ALLOCATIONS_SQLITE_PATH" default:"allocations.db"`

	LegacyHost     string `envconfig:"ALLOCATIONS_DB_HOST"`
	LegacyPort     int    `envconfig:"ALLOCATIONS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ALLOCATIONS_DB_USER"`
	LegacyPassword string `envconfig:"ALLOCATIONS_DB_PASSWORD"`
	LegacyName     string `envconfig:"ALLOCATIONS_DB_NAME"`
	LegacySSLMode  string `envconfig:"ALLOCATIONS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ALLOCATIONS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ALLOCATIONS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ALLOCATIONS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ALLOCATIONS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ALLOCATIONS_REDIS_URL"`
	Address      string        `envconfig:"ALLOCATIONS_REDIS_ADDR"`
	Password     string        `envconfig:"ALLOCATIONS_REDIS_PASSWORD"`
	DB           int           `envconfig:"ALLOCATIONS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ALLOCATIONS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ALLOCATIONS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ALLOCATIONS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ALLOCATIONS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ALLOCATIONS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"ALLOCATIONS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ALLOCATIONS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ALLOCATIONS_JWT_EXPIRATION_MINUTES" default:"480"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ALLOCATIONS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ALLOCATIONS_AUTO_MIGRATE" default:"false"`
}

type ReportingConfig struct {
	BaseURL string `envconfig:"ALLOCATIONS_REPORTING_BASE_URL"`
	// ProxyURL is prepended to every request URL when set (CORS proxy deployments).
	ProxyURL string        `envconfig:"ALLOCATIONS_REPORTING_PROXY_URL"`
	APIKey   string        `envconfig:"ALLOCATIONS_REPORTING_API_KEY"`
	TenantID string        `envconfig:"ALLOCATIONS_REPORTING_TENANT"`
	Timeout  time.Duration `envconfig:"ALLOCATIONS_REPORTING_TIMEOUT" default:"15s"`
	// Per-operator cap on proxied reporting calls. A zero limit disables it.
	RateLimit       int           `envconfig:"ALLOCATIONS_REPORTING_RATE_LIMIT" default:"120"`
	RateLimitWindow time.Duration `envconfig:"ALLOCATIONS_REPORTING_RATE_WINDOW" default:"1m"`
}

// Enabled reports whether the reporting API is configured.
func (r ReportingConfig) Enabled() bool {
	return strings.TrimSpace(r.BaseURL) != ""
}

type AudienceConfig struct {
	MemberCacheTTL time.Duration `envconfig:"ALLOCATIONS_AUDIENCE_MEMBER_CACHE_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
