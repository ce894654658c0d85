// Package auth provides JWT bearer authentication for pixloom-engine.
// Tokens are issued by the external identity service; this package only
// verifies them (against a JWKS endpoint) and exposes the caller's DID.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Claims represents the JWT claims structure from the identity service.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.).
type Claims struct {
	jwt.RegisteredClaims
	DID   string `json:"did,omitempty"`   // Wallet DID of the user
	Email string `json:"email,omitempty"` // User email address
}

// UserDID returns the caller identity: the did claim when present, otherwise
// the standard subject.
func (c *Claims) UserDID() string {
	if c.DID != "" {
		return c.DID
	}
	return c.Subject
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// SetClaims stores JWT claims in the context. Exposed for handler tests.
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RequireUserDID extracts the caller DID from context and returns an error
// if the request is unauthenticated.
func RequireUserDID(ctx context.Context) (string, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return "", fmt.Errorf("authentication required: no claims in context")
	}
	did := claims.UserDID()
	if did == "" {
		return "", fmt.Errorf("missing user identity in token")
	}
	return did, nil
}
