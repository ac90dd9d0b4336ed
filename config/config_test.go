package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "coverd",
			Password: "coverd",
			Database: "coverd",
			SSLMode:  "disable",
		},
		Engine: EngineConfig{
			CoverageWindow: 30 * 24 * time.Hour,
			GracePeriod:    30 * 24 * time.Hour,
			AdminAddress:   "0xadmin",
			CustodyAddress: "0xcustody",
		},
		Ledger: LedgerConfig{
			Mode:    LedgerModeMemory,
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "secret",
			Issuer:    "coverd",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing database", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("connection string alone is enough", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database = DatabaseConfig{ConnectionString: "postgres://u:p@h:5432/db"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing admin address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.AdminAddress = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing custody address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.CustodyAddress = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive coverage window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.CoverageWindow = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("memory ledger rejected in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = "production"
		assert.Error(t, cfg.Validate())
	})

	t.Run("remote ledger requires base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ledger.Mode = LedgerModeRemote
		assert.Error(t, cfg.Validate())

		cfg.Ledger.BaseURL = "http://ledger:9090"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown ledger mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ledger.Mode = "hybrid"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires JWT secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = "production"
		cfg.Ledger.Mode = LedgerModeRemote
		cfg.Ledger.BaseURL = "http://ledger:9090"
		cfg.Auth.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/coverd")
	t.Setenv("ADMIN_ADDRESS", "0xadmin")
	t.Setenv("CUSTODY_ADDRESS", "0xcustody")
	t.Setenv("POLICY_COVERAGE_WINDOW", "720h")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("ORACLE_ENDPOINTS", "0xAAA=http://a.example,0xbbb=http://b.example")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/coverd", cfg.Database.ConnectionString)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 720*time.Hour, cfg.Engine.CoverageWindow)
	assert.Equal(t, LedgerModeMemory, cfg.Ledger.Mode)

	// Endpoint targets are normalized to lowercase
	assert.Equal(t, "http://a.example", cfg.Oracle.Endpoints["0xaaa"])
	assert.Equal(t, "http://b.example", cfg.Oracle.Endpoints["0xbbb"])
}

func TestParseEndpointMap(t *testing.T) {
	m := parseEndpointMap("0xA=http://a, ,bad,=http://x,0xB=http://b")
	assert.Len(t, m, 2)
	assert.Equal(t, "http://a", m["0xa"])
	assert.Equal(t, "http://b", m["0xb"])

	assert.Empty(t, parseEndpointMap(""))
}

func TestDatabaseConfigStrings(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "secret",
		Database: "coverd", SSLMode: "disable",
	}
	assert.Contains(t, c.DSN(), "password=secret")
	assert.NotContains(t, c.LogString(), "secret")

	c2 := DatabaseConfig{ConnectionString: "postgres://u:secret@db:5433/coverd"}
	assert.Equal(t, "postgres://u:secret@db:5433/coverd", c2.DSN())
	assert.NotContains(t, c2.LogString(), "secret")
	assert.Contains(t, c2.LogString(), "5433")
}
