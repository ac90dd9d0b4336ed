package middleware

import (
	"context"

	"github.com/openclaims/coverd/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// CallerKey is the context key for the authenticated caller's address
	CallerKey contextKey = "caller"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetCallerFromContext retrieves the authenticated caller's address
// from context; zero when unauthenticated
func GetCallerFromContext(ctx context.Context) models.Address {
	if val := ctx.Value(CallerKey); val != nil {
		if caller, ok := val.(models.Address); ok {
			return caller
		}
	}
	return ""
}

// WithCaller adds the authenticated caller's address to the context
func WithCaller(ctx context.Context, caller models.Address) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}
