// Package auth validates the bearer tokens callers present. The token
// subject is the caller's ledger address; the service derives all
// authority (ownership, administration) from that address, never from
// token roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrMissingSubject is returned when the token carries no subject address
	ErrMissingSubject = errors.New("token subject missing")
)

// Claims are the token claims the service cares about
type Claims struct {
	jwt.RegisteredClaims
}

// ParsedClaims is a validated token reduced to what handlers need
type ParsedClaims struct {
	Address   models.Address
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Validator validates HS256 bearer tokens
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a validator from configuration
func NewValidator(cfg config.AuthConfig) *Validator {
	return &Validator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// ValidateToken validates a token and returns the caller's address
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*ParsedClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	parsed := &ParsedClaims{
		Address: models.NormalizeAddress(claims.Subject),
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}

// IssueToken signs a token for the given address. Used by tests and
// development tooling; production deployments issue tokens elsewhere.
func (v *Validator) IssueToken(address models.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
