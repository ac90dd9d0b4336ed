package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/openclaims/coverd/app"
	"github.com/openclaims/coverd/auth"
	"github.com/openclaims/coverd/handlers"
	"github.com/openclaims/coverd/middleware"
	"github.com/openclaims/coverd/routes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// rejectAllValidator rejects every token so protected routes return 401
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*auth.ParsedClaims, error) {
	return nil, assert.AnError
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "info")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

// testDependencies builds the minimal wiring for route-level tests
// without a database or ledger behind it.
func testDependencies(t *testing.T) *app.Dependencies {
	logger := zaptest.NewLogger(t)
	return &app.Dependencies{
		Logger:         logger,
		AuthMiddleware: middleware.NewAuthMiddleware(&rejectAllValidator{}, logger),
		PolicyHandler:  handlers.NewPolicyHandler(nil, nil, logger),
		AdminHandler:   handlers.NewAdminHandler(nil, logger),
		HealthHandler:  handlers.NewHealthHandler(nil, logger),
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestAPIEndpointsRequireAuth(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"create policy", "POST", "/api/v1/policies", http.StatusUnauthorized},
		{"list policies", "GET", "/api/v1/policies", http.StatusUnauthorized},
		{"verify policy", "POST", "/api/v1/policies/abc/verify", http.StatusUnauthorized},
		{"register claim", "POST", "/api/v1/policies/abc/claims", http.StatusUnauthorized},
		{"admin pause", "POST", "/api/v1/admin/pause", http.StatusUnauthorized},
		{"admin status", "GET", "/api/v1/admin/status", http.StatusUnauthorized},
		{"unknown api path still gated", "GET", "/api/v1/nonexistent", http.StatusUnauthorized},
		{"not found", "GET", "/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	req, err := http.NewRequest("OPTIONS", ts.URL+"/api/v1/policies", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
