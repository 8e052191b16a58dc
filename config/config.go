package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Application struct {
	Name                    string
	Env                     string
	GracefulShutdownTimeout time.Duration
}

type HTTPServer struct {
	Port int
}

type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the lib/pq keyword/value connection string
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(d.Host), d.Port, dsnValue(d.User), dsnValue(d.Password), dsnValue(d.Name), dsnValue(d.SSLMode))
}

// URL returns the postgres:// form used by the migration runner, with credentials escaped
func (d Database) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue quotes v when lib/pq would otherwise split or misread it
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + dsnEscaper.Replace(v) + "'"
}

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type Logger struct {
	Level string
	Mode  string // development or production
}

type Swagger struct {
	Enabled bool `json:"enabled"`
}

type JWT struct {
	Secret         string
	Issuer         string
	ExpirationTime time.Duration
}

type OTP struct {
	Length         int
	ExpirationTime time.Duration
	// MaxAttempts is the number of guesses allowed per code; 0 disables the check.
	MaxAttempts int
}

type RateLimit struct {
	Enabled        bool
	MaxRequests    int
	WindowDuration time.Duration
}

type Security struct {
	BcryptCost int
}

type Config struct {
	Application Application
	HTTPServer  HTTPServer
	Database    Database
	Redis       Redis
	Logger      Logger
	Swagger     Swagger
	JWT         JWT
	OTP         OTP
	RateLimit   RateLimit
	Security    Security
}

// Load reads an optional .env file and builds the configuration from the environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Application: Application{
			Name:                    getEnvWithDefault("APPLICATION_NAME", "clinic-auth"),
			Env:                     getEnvWithDefault("APPLICATION_ENV", "production"),
			GracefulShutdownTimeout: parseDurationWithDefault("APPLICATION_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		HTTPServer: HTTPServer{
			Port: parseIntWithDefault("HTTP_SERVER_PORT", 8080),
		},
		Database: Database{
			Host:     getEnvWithDefault("DATABASE_HOST", "db"),
			Port:     parseIntWithDefault("DATABASE_PORT", 5432),
			User:     getEnvWithDefault("DATABASE_USER", "clinic_auth"),
			Password: getEnvWithDefault("DATABASE_PASSWORD", "clinic_auth"),
			Name:     getEnvWithDefault("DATABASE_NAME", "clinic_auth"),
			SSLMode:  getEnvWithDefault("DATABASE_SSL_MODE", "disable"),
		},
		Logger: Logger{
			Level: getEnvWithDefault("LOGGER_LEVEL", "info"),
			Mode:  getEnvWithDefault("LOGGER_MODE", "production"),
		},
		Swagger: Swagger{
			Enabled: getEnvBoolWithDefault("SWAGGER_ENABLED", true),
		},
		JWT: JWT{
			Secret:         getEnvWithDefault("JWT_SECRET", "your-super-secret-key-change-in-production"),
			Issuer:         getEnvWithDefault("JWT_ISSUER", "clinic-auth-service"),
			ExpirationTime: parseDurationWithDefault("JWT_EXPIRATION_TIME", 24*time.Hour),
		},
		OTP: OTP{
			Length:         parseIntWithDefault("OTP_LENGTH", 6),
			ExpirationTime: parseDurationWithDefault("OTP_EXPIRATION_TIME", 10*time.Minute),
			MaxAttempts:    parseIntWithDefault("OTP_MAX_ATTEMPTS", 5),
		},
		Redis: Redis{
			Host:     getEnvWithDefault("REDIS_HOST", "redis"),
			Port:     parseIntWithDefault("REDIS_PORT", 6379),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       parseIntWithDefault("REDIS_DB", 0),
		},
		RateLimit: RateLimit{
			Enabled:        getEnvBoolWithDefault("RATE_LIMIT_ENABLED", true),
			MaxRequests:    parseIntWithDefault("RATE_LIMIT_MAX_REQUESTS", 3),
			WindowDuration: parseDurationWithDefault("RATE_LIMIT_WINDOW_DURATION", 10*time.Minute),
		},
		Security: Security{
			BcryptCost: parseIntWithDefault("BCRYPT_COST", 12),
		},
	}

	// Support legacy environment variables for backwards compatibility
	if port := os.Getenv("APP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTPServer.Port = p
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return errors.New("config: OTP_LENGTH must be between 4 and 10")
	}
	if c.OTP.ExpirationTime <= 0 {
		return errors.New("config: OTP_EXPIRATION_TIME must be positive")
	}
	if c.OTP.MaxAttempts < 0 {
		return errors.New("config: OTP_MAX_ATTEMPTS must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests < 1 || c.RateLimit.WindowDuration <= 0) {
		return errors.New("config: rate limit needs a positive RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_WINDOW_DURATION")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.Application.Env == "production" && c.JWT.Secret == "your-super-secret-key-change-in-production" {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
