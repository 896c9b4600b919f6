package toolserver

import (
	"net/http"

	"github.com/go-faster/jx"

	"issuebridge/internal/modules"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str("Tool server is running") })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
		e.Field("tools", func(e *jx.Encoder) { e.Int(len(s.registry.Tools())) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

// handleTools publishes every registered descriptor. The list is static for
// the life of the process.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	var e jx.Encoder
	if err := modules.EncodeTools(&e, s.registry.Tools()); err != nil {
		s.logger.Error().Err(err).Msg("encode tool descriptors")
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
