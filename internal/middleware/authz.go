package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"issuebridge/internal/auth"
	"issuebridge/internal/observability"
)

// AuthError represents an authorization error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// Authorizer guards remote tool execution with bearer tokens.
type Authorizer struct {
	verifier *auth.Verifier
	logger   zerolog.Logger
}

// NewAuthorizer creates a new authorizer. A verifier without a secret makes
// Authorize a pass-through.
func NewAuthorizer(verifier *auth.Verifier, logger zerolog.Logger) *Authorizer {
	return &Authorizer{
		verifier: verifier,
		logger:   logger.With().Str("component", "authz").Logger(),
	}
}

// Authorize is HTTP middleware that checks the bearer token
func (a *Authorizer) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.verifier.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.ValidateRequest(r)
		if err != nil {
			a.writeErrorResponse(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateRequest validates the request and returns the token subject
func (a *Authorizer) ValidateRequest(r *http.Request) (string, error) {
	requestID := GetRequestID(r.Context())

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		observability.LogSecurityEvent(requestID, "missing_bearer_token", map[string]any{
			"remote_addr": r.RemoteAddr,
		})
		return "", &AuthError{
			Code:    "MISSING_TOKEN",
			Message: "Missing bearer token",
			Status:  http.StatusUnauthorized,
		}
	}

	claims, err := a.verifier.VerifyToken(strings.TrimSpace(token))
	if err != nil {
		a.logger.Warn().Err(err).Str("request_id", requestID).Msg("rejected token")
		observability.LogSecurityEvent(requestID, "invalid_bearer_token", map[string]any{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return "", &AuthError{
			Code:    "INVALID_TOKEN",
			Message: "Invalid bearer token",
			Status:  http.StatusUnauthorized,
		}
	}
	return claims.Subject, nil
}

// writeErrorResponse writes an authorization error response
func (a *Authorizer) writeErrorResponse(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{
			Code:    "AUTHORIZATION_ERROR",
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="issuebridge"`)
	w.WriteHeader(authErr.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   authErr.Code,
		"message": authErr.Message,
	})
}
