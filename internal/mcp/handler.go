package mcp

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"issuebridge/internal/jsonrpc"
	"issuebridge/internal/middleware"
	"issuebridge/internal/modules"
)

// Handler serves the registry over MCP's JSON-RPC methods.
type Handler struct {
	registry *modules.Registry
	version  string
	logger   zerolog.Logger
}

func NewHandler(registry *modules.Registry, version string, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		version:  version,
		logger:   logger.With().Str("component", "mcp").Logger(),
	}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport middleware.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	if req.JSONRPC != jsonrpc.Version {
		return nil, &jsonrpc.Error{Code: InvalidRequest, Message: "Invalid Request"}
	}

	switch req.Method {
	case "initialize":
		return h.handleInitialize(req), nil
	case "initialized", "notifications/initialized":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return h.handleToolsList(), nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	default:
		return nil, &jsonrpc.Error{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) *InitializeResult {
	var params InitializeParams
	if err := decodeParams(req.Params, &params); err == nil && params.ClientInfo.Name != "" {
		h.logger.Info().
			Str("client", params.ClientInfo.Name).
			Str("client_version", params.ClientInfo.Version).
			Msg("client initialized")
	}

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    "issuebridge",
			Version: h.version,
		},
	}
}

func (h *Handler) handleToolsList() *ToolsListResult {
	tools := h.registry.Tools()
	infos := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Annotations: t.Annotations,
		})
	}
	return &ToolsListResult{Tools: infos}
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*ToolCallResult, *jsonrpc.Error) {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "name is required"}
	}
	if _, ok := h.registry.Lookup(params.Name); !ok {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Unknown tool: " + params.Name}
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]interface{})
	}

	h.logger.Debug().
		Str("request_id", middleware.GetRequestID(ctx)).
		Str("subject", middleware.GetSubject(ctx)).
		Str("tool", params.Name).
		Msg("tools/call")

	return h.registry.Run(ctx, params.Name, params.Arguments), nil
}

func decodeParams(raw interface{}, out interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
