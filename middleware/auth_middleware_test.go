package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openclaims/coverd/auth"
	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequireAuth(t *testing.T) {
	validator := auth.NewValidator(config.AuthConfig{JWTSecret: "secret", Issuer: "coverd"})
	mw := NewAuthMiddleware(validator, zap.NewNop())

	var gotCaller models.Address
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes caller through", func(t *testing.T) {
		token, err := validator.IssueToken("0xA11CE", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.Address("0xa11ce"), gotCaller)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCallerContext(t *testing.T) {
	ctx := WithCaller(httptest.NewRequest("GET", "/", nil).Context(), "0xb0b")
	assert.Equal(t, models.Address("0xb0b"), GetCallerFromContext(ctx))
	assert.Equal(t, models.Address(""), GetCallerFromContext(httptest.NewRequest("GET", "/", nil).Context()))
}
