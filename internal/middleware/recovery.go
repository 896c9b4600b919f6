package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"issuebridge/internal/observability"
)

// Recovery is HTTP middleware that recovers from panics.
// It logs the stack trace and returns a 500 Internal Server Error.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					requestID := GetRequestID(r.Context())
					logger.Error().
						Str("request_id", requestID).
						Str("panic", fmt.Sprint(err)).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")

					observability.LogSecurityEvent(requestID, "panic_recovered", map[string]any{
						"error": err,
						"path":  r.URL.Path,
					})

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, `{"error":"internal_server_error","message":"An unexpected error occurred"}`)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
