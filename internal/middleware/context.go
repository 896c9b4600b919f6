package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request tracing ID
	RequestIDKey ContextKey = "requestID"
	// SubjectKey is the context key for the authenticated token subject
	SubjectKey ContextKey = "subject"
)

// WithRequestID attaches a tracing ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts request ID from context. IDs set by chi's RequestID
// middleware are honored as well.
func GetRequestID(ctx context.Context) string {
	if id, _ := ctx.Value(RequestIDKey).(string); id != "" {
		return id
	}
	return chimw.GetReqID(ctx)
}

// GetSubject returns the authenticated subject, or "" for anonymous requests.
func GetSubject(ctx context.Context) string {
	sub, _ := ctx.Value(SubjectKey).(string)
	return sub
}
