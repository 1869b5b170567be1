package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// insecureDevSecret is only ever used when ENVIRONMENT=development and
	// SECRET_KEY is unset.
	insecureDevSecret = "dev-secret-key-change-me"
)

// Config holds everything the server and CLI need at startup
type Config struct {
	Environment    string
	ServerPort     string
	LogLevel       string
	AllowedOrigins []string
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the socket peer is the client.
	TrustedProxies []string
	DB             DBConfig
	JWT            JWTConfig
	RateLimit      RateLimitConfig

	// UsingDevSecret is set when SECRET_KEY fell back to the development default
	UsingDevSecret bool
}

// DBConfig holds database connection parameters
type DBConfig struct {
	DSN string
}

// JWTConfig holds token signing parameters
type JWTConfig struct {
	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration
}

// RateLimitConfig bounds requests per client IP on the credential endpoints
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load reads configuration from a .env file, if present, and the environment
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already carry everything.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply values
// without touching the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment: valueOr(getenv("ENVIRONMENT"), EnvDevelopment),
		ServerPort:  valueOr(getenv("SERVER_PORT"), "8000"),
		LogLevel:    valueOr(getenv("LOG_LEVEL"), "info"),
	}

	dbCfg, err := loadDBConfig(getenv)
	if err != nil {
		return nil, err
	}
	cfg.DB = *dbCfg

	secret := getenv("SECRET_KEY")
	if secret == "" {
		if cfg.Environment != EnvDevelopment {
			return nil, fmt.Errorf("SECRET_KEY must be set when ENVIRONMENT=%s", cfg.Environment)
		}
		secret = insecureDevSecret
		cfg.UsingDevSecret = true
	}

	algorithm := strings.ToUpper(valueOr(getenv("ALGORITHM"), "HS256"))
	if !supportedAlgorithms[algorithm] {
		return nil, fmt.Errorf("unsupported ALGORITHM %q: must be one of HS256, HS384, HS512", algorithm)
	}

	ttlMinutes, err := intOr(getenv("ACCESS_TOKEN_EXPIRE_MINUTES"), 30)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
	}
	if ttlMinutes <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", ttlMinutes)
	}
	cfg.JWT = JWTConfig{
		SecretKey:      secret,
		Algorithm:      algorithm,
		AccessTokenTTL: time.Duration(ttlMinutes) * time.Minute,
	}

	cfg.AllowedOrigins = splitList(valueOr(getenv("ALLOWED_ORIGINS"), "http://localhost:3000,http://localhost:8000"))

	cfg.TrustedProxies = splitList(getenv("TRUSTED_PROXIES"))
	for _, proxy := range cfg.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: must be an IP or CIDR", proxy)
			}
		}
	}

	rps, err := floatOr(getenv("RATE_LIMIT_RPS"), 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := intOr(getenv("RATE_LIMIT_BURST"), 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimit = RateLimitConfig{RPS: rps, Burst: burst}

	return cfg, nil
}

// loadDBConfig prefers DATABASE_URL and falls back to the discrete DB_* variables
func loadDBConfig(getenv func(string) string) (*DBConfig, error) {
	if url := getenv("DATABASE_URL"); url != "" {
		return &DBConfig{DSN: url}, nil
	}

	dbHost := getenv("DB_HOST")
	dbPort := getenv("DB_PORT")
	dbUser := getenv("DB_USER")
	dbPassword := getenv("DB_PASSWORD")
	dbName := getenv("DB_NAME")

	if dbHost == "" || dbPort == "" || dbUser == "" || dbName == "" {
		return nil, fmt.Errorf("database environment variables not set (DATABASE_URL or DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	return &DBConfig{DSN: dsn}, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func floatOr(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
