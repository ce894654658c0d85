package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RequestValidator validates a request and returns its claims.
// *Verifier implements this; tests substitute a stub.
type RequestValidator interface {
	ValidateRequest(r *http.Request) (*Claims, error)
}

// Middleware provides HTTP authentication middleware.
type Middleware struct {
	validator RequestValidator
	logger    *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given validator.
func NewMiddleware(validator RequestValidator, logger *zap.Logger) *Middleware {
	return &Middleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth validates the bearer token and requires a user identity.
// Sets claims in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validator.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("Authentication failed", zap.Error(err))
			m.unauthorized(w, "Authentication required")
			return
		}

		if claims.UserDID() == "" {
			m.unauthorized(w, "Missing user identity in token")
			return
		}

		next(w, r.WithContext(SetClaims(r.Context(), claims)))
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
