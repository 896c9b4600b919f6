package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"issuebridge/internal/jsonrpc"
)

// maxRequestBody bounds a single JSON-RPC request.
const maxRequestBody = 1 << 20

// RequestProcessor processes JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)
}

// transport serves JSON-RPC over plain request/response HTTP.
type transport struct {
	processor RequestProcessor
	logger    zerolog.Logger
}

// Transport creates an http.Handler for inline JSON-RPC: each POST carries
// one request and its response is written in the same HTTP exchange.
func Transport(processor RequestProcessor, logger zerolog.Logger) http.Handler {
	return &transport{
		processor: processor,
		logger:    logger.With().Str("component", "transport").Logger(),
	}
}

func (t *transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		t.writeResponse(w, jsonrpc.Response{
			JSONRPC: jsonrpc.Version,
			Error:   &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"},
		})
		return
	}

	t.logger.Debug().
		Str("request_id", GetRequestID(r.Context())).
		Str("method", req.Method).
		Interface("id", req.ID).
		Msg("received request")

	result, rpcErr := t.processor.ProcessRequest(r.Context(), &req)

	// Notifications get no response body, even on error
	if req.ID == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	resp := jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	t.writeResponse(w, resp)
}

func (t *transport) writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.logger.Error().Err(err).Msg("failed to write response")
	}
}
