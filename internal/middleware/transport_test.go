package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"issuebridge/internal/jsonrpc"
)

type processorFunc func(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)

func (f processorFunc) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	return f(ctx, req)
}

func TestTransport(t *testing.T) {
	h := Transport(processorFunc(func(_ context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
		switch req.Method {
		case "ok":
			return map[string]string{"pong": "yes"}, nil
		case "notify":
			return nil, nil
		default:
			return nil, &jsonrpc.Error{Code: jsonrpc.MethodNotFound, Message: "Method not found"}
		}
	}), zerolog.Nop())

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantResult string
		wantCode   int
	}{
		{"result", http.MethodPost, `{"jsonrpc":"2.0","id":1,"method":"ok"}`, http.StatusOK, `{"pong":"yes"}`, 0},
		{"rpc error", http.MethodPost, `{"jsonrpc":"2.0","id":2,"method":"missing"}`, http.StatusOK, "", jsonrpc.MethodNotFound},
		{"parse error", http.MethodPost, `{not json`, http.StatusOK, "", jsonrpc.ParseError},
		{"notification", http.MethodPost, `{"jsonrpc":"2.0","method":"notify"}`, http.StatusAccepted, "", 0},
		{"failed notification", http.MethodPost, `{"jsonrpc":"2.0","method":"notifications/unknown"}`, http.StatusAccepted, "", 0},
		{"GET rejected", http.MethodGet, "", http.StatusMethodNotAllowed, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/mcp", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusAccepted && rec.Body.Len() != 0 {
				t.Fatalf("notification got body %q", rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				JSONRPC string          `json:"jsonrpc"`
				Result  json.RawMessage `json:"result"`
				Error   *jsonrpc.Error  `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.JSONRPC != "2.0" {
				t.Errorf("jsonrpc = %q", resp.JSONRPC)
			}
			if tt.wantCode != 0 {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %d", resp.Error, tt.wantCode)
				}
				return
			}
			if string(resp.Result) != tt.wantResult {
				t.Errorf("result = %s, want %s", resp.Result, tt.wantResult)
			}
		})
	}
}
