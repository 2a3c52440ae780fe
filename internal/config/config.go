// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port  int    `koanf:"port"`
	Env   string `koanf:"env"`
	Debug bool   `koanf:"debug"`

	// Database
	DatabaseURL    string `koanf:"database_url"`
	MigrationsPath string `koanf:"migrations_path"`

	// JWT authentication. The previous secret stays valid during rotation.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTSecretPrevious string `koanf:"jwt_secret_previous"`

	// Redis, used by the distributed rate limiter. Empty falls back to the
	// in-memory store.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// Password hashing
	BcryptCost int `koanf:"bcrypt_cost"`

	// Rate limiting (requests per minute)
	GlobalRateLimit int `koanf:"global_rate_limit"`
	LoginRateLimit  int `koanf:"login_rate_limit"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidBcryptCost  = errors.New("BCRYPT_COST must be between 4 and 31")
	ErrInvalidRateLimit   = errors.New("rate limits must be positive integers")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultMigrationsPath  = "migrations"
	DefaultBcryptCost      = 12
	DefaultGlobalRateLimit = 120
	DefaultLoginRateLimit  = 10
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values. Returns the
// loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// File values load first so the environment can override them.
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort, ErrInvalidPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}
	bcryptCost, costErr := getEnvIntOrDefault("BCRYPT_COST", k.Int("bcrypt_cost"), DefaultBcryptCost, ErrInvalidBcryptCost)
	if costErr != nil {
		loadErrs = append(loadErrs, costErr)
	}
	globalLimit, globalErr := getEnvIntOrDefault("GLOBAL_RATE_LIMIT", k.Int("global_rate_limit"), DefaultGlobalRateLimit, ErrInvalidRateLimit)
	if globalErr != nil {
		loadErrs = append(loadErrs, globalErr)
	}
	loginLimit, loginErr := getEnvIntOrDefault("LOGIN_RATE_LIMIT", k.Int("login_rate_limit"), DefaultLoginRateLimit, ErrInvalidRateLimit)
	if loginErr != nil {
		loadErrs = append(loadErrs, loginErr)
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		Debug:              getEnvBool("DEBUG", k.Bool("debug")),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		MigrationsPath:     getEnvOrDefault("MIGRATIONS_PATH", k.String("migrations_path"), DefaultMigrationsPath),
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTSecretPrevious:  getEnvOrKoanf("JWT_SECRET_PREVIOUS", k, "jwt_secret_previous"),
		RedisAddr:          getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:      getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		BcryptCost:         bcryptCost,
		GlobalRateLimit:    globalLimit,
		LoginRateLimit:     loginLimit,
		CORSAllowedOrigins: getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)
	return cfg, errs
}

// Validate checks that all required configuration values are present and
// sane. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, ErrInvalidBcryptCost)
	}
	if c.GlobalRateLimit <= 0 || c.LoginRateLimit <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	return errs
}

// IsProduction reports whether the server runs in production mode. Error
// responses omit detail strings outside debug mode regardless, but some
// logging defaults key off this.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"debug":                fmt.Sprintf("%t", c.Debug),
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"migrations_path":      c.MigrationsPath,
		"jwt_secret":           maskSecret(c.JWTSecret),
		"jwt_secret_previous":  maskSecret(c.JWTSecretPrevious),
		"redis_addr":           c.RedisAddr,
		"bcrypt_cost":          fmt.Sprintf("%d", c.BcryptCost),
		"global_rate_limit":    fmt.Sprintf("%d", c.GlobalRateLimit),
		"login_rate_limit":     fmt.Sprintf("%d", c.LoginRateLimit),
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
	}
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the
// koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise
// the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBool returns the environment variable as a bool if set, otherwise
// the koanf value.
func getEnvBool(envKey string, koanfVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return koanfVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. A set but unparsable variable
// yields the wrapped sentinel error.
func getEnvIntOrDefault(envKey string, koanfVal, defaultVal int, sentinel error) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, sentinel)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// maskSecret masks a secret value, showing only the first 4 characters.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // no credentials in URL
	}
	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // no password, only username
	}

	scheme := s[:schemeEnd+3]
	userPart := rest[:colonIndex]
	hostAndPath := rest[atIndex:]
	return scheme + userPart + ":****" + hostAndPath
}
