package mcp

import (
	"issuebridge/internal/jsonrpc"
	"issuebridge/internal/modules"
)

// Re-export JSON-RPC types for use within this package
type Request = jsonrpc.Request
type Response = jsonrpc.Response
type Error = jsonrpc.Error

// Re-export JSON-RPC error codes
const (
	ParseError     = jsonrpc.ParseError
	InvalidRequest = jsonrpc.InvalidRequest
	MethodNotFound = jsonrpc.MethodNotFound
	InvalidParams  = jsonrpc.InvalidParams
	InternalError  = jsonrpc.InternalError
)

// ProtocolVersion is the MCP revision spoken by the handler.
const ProtocolVersion = "2025-03-26"

// MCP Protocol Types
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolInfo is a tool as MCP clients expect it (camelCase inputSchema).
type ToolInfo struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	InputSchema modules.InputSchema      `json:"inputSchema"`
	Annotations *modules.ToolAnnotations `json:"annotations,omitempty"`
}

type ToolsListResult struct {
	Tools []ToolInfo `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Use modules types
type ToolCallResult = modules.ToolCallResult
type ContentBlock = modules.ContentBlock
