package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	// Empty DatabaseURL / RedisURL select the in-memory stores.
	DatabaseURL string
	RedisURL    string

	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration

	SuperAdminLogin             string
	SuperAdminBootstrapPassword string
	SuperAdminDefaultTenant     string
	MinPasswordLength           int
	BcryptCost                  int

	LoginRateLimit       int
	LoginRateWindow      time.Duration
	APIRateLimit         int
	APIRateWindow        time.Duration
	TenantCacheTTL       time.Duration
	SessionCleanupPeriod time.Duration

	CORSAllowedOrigins []string

	OTLPEndpoint     string
	TraceSampleRatio float64
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE
type fileConfig struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Auth struct {
		JWTIssuer         string `yaml:"jwt_issuer"`
		SessionTTL        string `yaml:"session_ttl"`
		SuperAdminLogin   string `yaml:"super_admin_login"`
		DefaultTenant     string `yaml:"super_admin_default_tenant"`
		MinPasswordLength int    `yaml:"min_password_length"`
		BcryptCost        int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	RateLimit struct {
		LoginAttempts int    `yaml:"login_attempts"`
		LoginWindow   string `yaml:"login_window"`
	} `yaml:"rate_limit"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Load resolves configuration in order: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:                 "development",
		ServerPort:                  8080,
		LogLevel:                    "info",
		JWTIssuer:                   "workspace",
		SessionTTL:                  12 * time.Hour,
		SuperAdminLogin:             "admin",
		SuperAdminBootstrapPassword: "",
		MinPasswordLength:           8,
		BcryptCost:                  12,
		LoginRateLimit:              10,
		LoginRateWindow:             time.Minute,
		APIRateLimit:                300,
		APIRateWindow:               time.Minute,
		TenantCacheTTL:              30 * time.Second,
		SessionCleanupPeriod:        5 * time.Minute,
		TraceSampleRatio:            1,
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Environment != "" {
		c.Environment = f.Environment
	}
	if f.Server.Port > 0 {
		c.ServerPort = f.Server.Port
	}
	if f.Server.LogLevel != "" {
		c.LogLevel = f.Server.LogLevel
	}
	if f.Dependencies.PostgresURL != "" {
		c.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		c.RedisURL = f.Dependencies.RedisURL
	}
	if f.Auth.JWTIssuer != "" {
		c.JWTIssuer = f.Auth.JWTIssuer
	}
	if f.Auth.SessionTTL != "" {
		d, err := time.ParseDuration(f.Auth.SessionTTL)
		if err != nil {
			return fmt.Errorf("invalid auth.session_ttl: %w", err)
		}
		c.SessionTTL = d
	}
	if f.Auth.SuperAdminLogin != "" {
		c.SuperAdminLogin = f.Auth.SuperAdminLogin
	}
	if f.Auth.DefaultTenant != "" {
		c.SuperAdminDefaultTenant = f.Auth.DefaultTenant
	}
	if f.Auth.MinPasswordLength > 0 {
		c.MinPasswordLength = f.Auth.MinPasswordLength
	}
	if f.Auth.BcryptCost > 0 {
		c.BcryptCost = f.Auth.BcryptCost
	}
	if f.RateLimit.LoginAttempts > 0 {
		c.LoginRateLimit = f.RateLimit.LoginAttempts
	}
	if f.RateLimit.LoginWindow != "" {
		d, err := time.ParseDuration(f.RateLimit.LoginWindow)
		if err != nil {
			return fmt.Errorf("invalid rate_limit.login_window: %w", err)
		}
		c.LoginRateWindow = d
	}
	if len(f.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = f.CORSAllowedOrigins
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.SuperAdminLogin = getEnv("SUPERADMIN_LOGIN", c.SuperAdminLogin)
	c.SuperAdminBootstrapPassword = getEnv("SUPERADMIN_BOOTSTRAP_PASSWORD", c.SuperAdminBootstrapPassword)
	c.SuperAdminDefaultTenant = getEnv("SUPERADMIN_DEFAULT_TENANT", c.SuperAdminDefaultTenant)
	c.CORSAllowedOrigins = parseCSVEnv("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		ratio, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG: %w", perr)
		}
		c.TraceSampleRatio = ratio
	}

	if c.ServerPort, err = getIntEnv("SERVER_PORT", c.ServerPort); err != nil {
		return err
	}
	if c.MinPasswordLength, err = getIntEnv("MIN_PASSWORD_LENGTH", c.MinPasswordLength); err != nil {
		return err
	}
	if c.BcryptCost, err = getIntEnv("BCRYPT_COST", c.BcryptCost); err != nil {
		return err
	}
	if c.LoginRateLimit, err = getIntEnv("LOGIN_RATE_LIMIT", c.LoginRateLimit); err != nil {
		return err
	}
	if c.APIRateLimit, err = getIntEnv("API_RATE_LIMIT", c.APIRateLimit); err != nil {
		return err
	}
	if c.SessionTTL, err = getDurationEnv("SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}
	if c.LoginRateWindow, err = getDurationEnv("LOGIN_RATE_WINDOW", c.LoginRateWindow); err != nil {
		return err
	}
	if c.TenantCacheTTL, err = getDurationEnv("TENANT_CACHE_TTL", c.TenantCacheTTL); err != nil {
		return err
	}
	if c.SessionCleanupPeriod, err = getDurationEnv("SESSION_CLEANUP_INTERVAL", c.SessionCleanupPeriod); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.ServerPort))
	}
	if c.MinPasswordLength < 1 {
		errs = append(errs, fmt.Errorf("min password length must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive"))
	}
	if strings.Contains(c.SuperAdminLogin, "_") {
		errs = append(errs, fmt.Errorf("super admin login %q must not contain '_'", c.SuperAdminLogin))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
