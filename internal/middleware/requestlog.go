package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"issuebridge/internal/observability"
)

// RequestLog logs every HTTP request and records it in metrics and Loki.
func RequestLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			} else if status >= http.StatusBadRequest {
				ev = logger.Warn()
			}
			ev.Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Msg("http request")

			observability.RecordHTTPRequest(r.Method, route, strconv.Itoa(status))
			observability.LogRequest(r.Method, route, status, duration.Milliseconds())
		})
	}
}
