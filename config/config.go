package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Engine        EngineConfig
	Ledger        LedgerConfig
	Oracle        OracleConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// EngineConfig holds the policy lifecycle engine parameters.
// CoverageWindow is the fixed deadline window applied to every policy;
// callers cannot choose their own deadline.
type EngineConfig struct {
	CoverageWindow time.Duration // deadline = createdAt + CoverageWindow
	GracePeriod    time.Duration // emergency recovery allowed after deadline + GracePeriod
	AdminAddress   string        // current administrator identity
	CustodyAddress string        // ledger account holding escrowed funds
}

// LedgerMode selects the ledger backend
type LedgerMode string

const (
	// LedgerModeMemory uses the in-process ledger (development and tests)
	LedgerModeMemory LedgerMode = "memory"

	// LedgerModeRemote uses the HTTP ledger client
	LedgerModeRemote LedgerMode = "remote"
)

// LedgerConfig holds the external token ledger configuration
type LedgerConfig struct {
	Mode       LedgerMode
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// OracleConfig holds the claim-status attestation configuration.
// Endpoints maps a target address to its attestation base URL.
type OracleConfig struct {
	Endpoints map[string]string
	Timeout   time.Duration
}

// AuthConfig holds bearer-token authentication configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Engine: EngineConfig{
			CoverageWindow: getEnvAsDuration("POLICY_COVERAGE_WINDOW", 30*24*time.Hour),
			GracePeriod:    getEnvAsDuration("POLICY_GRACE_PERIOD", 30*24*time.Hour),
			AdminAddress:   getEnv("ADMIN_ADDRESS", ""),
			CustodyAddress: getEnv("CUSTODY_ADDRESS", ""),
		},
		Ledger: LedgerConfig{
			Mode:       LedgerMode(getEnv("LEDGER_MODE", string(LedgerModeMemory))),
			BaseURL:    getEnv("LEDGER_BASE_URL", ""),
			Timeout:    getEnvAsDuration("LEDGER_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("LEDGER_MAX_RETRIES", 3),
		},
		Oracle: OracleConfig{
			Endpoints: parseEndpointMap(getEnv("ORACLE_ENDPOINTS", "")),
			Timeout:   getEnvAsDuration("ORACLE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "coverd"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Engine validation
	if c.Engine.CoverageWindow <= 0 {
		return fmt.Errorf("coverage window must be positive")
	}
	if c.Engine.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	if c.Engine.AdminAddress == "" {
		return fmt.Errorf("admin address is required")
	}
	if c.Engine.CustodyAddress == "" {
		return fmt.Errorf("custody address is required")
	}

	// Ledger validation
	switch c.Ledger.Mode {
	case LedgerModeMemory:
		if c.IsProduction() {
			return fmt.Errorf("in-memory ledger is not allowed in production")
		}
	case LedgerModeRemote:
		if c.Ledger.BaseURL == "" {
			return fmt.Errorf("ledger base URL is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown ledger mode: %s", c.Ledger.Mode)
	}

	// Auth validation (required in production)
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "coverd"),
		Password:        getEnv("DB_PASSWORD", "coverd"),
		Database:        getEnv("DB_NAME", "coverd"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// parseEndpointMap parses "target=url,target=url" into a map.
// Malformed entries are skipped.
func parseEndpointMap(s string) map[string]string {
	endpoints := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		endpoints[strings.ToLower(parts[0])] = parts[1]
	}
	return endpoints
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
