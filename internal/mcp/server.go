// ABOUTME: MCP-compatible server exposing casebook operations to external agents.
// ABOUTME: Implements Streamable HTTP transport (spec 2025-11-25) with session management.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/casebook/internal/auth"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id              string
	protocolVersion string
	ownerToken      string // credential used to verify session ownership on DELETE
	createdAt       time.Time
}

// sessionStore manages active MCP sessions (in-memory).
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) create(protocolVersion, ownerToken string) *mcpSession {
	sess := &mcpSession{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		ownerToken:      ownerToken,
		createdAt:       time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*mcpSession, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

// Config holds configuration for the MCP server.
type Config struct {
	Tracker     Tracker
	Logger      *slog.Logger
	RequireAuth bool   // If true, reject HTTP requests without the shared API key
	APIKey      string // Shared key checked on every HTTP request when RequireAuth is set
	Version     string // Reported in initialize responses
}

// Server exposes the tool catalog over MCP transports. It validates tool
// arguments, dispatches to the tracker, and wraps every outcome in the
// canonical envelope documented in the package comment.
type Server struct {
	logger      *slog.Logger
	requireAuth bool
	apiKey      string
	version     string
	sessions    *sessionStore
	tools       []Tool
	toolIndex   map[string]*Tool
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if cfg.RequireAuth && cfg.APIKey == "" {
		return nil, errors.New("API key required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		logger:      logger,
		requireAuth: cfg.RequireAuth,
		apiKey:      cfg.APIKey,
		version:     version,
		sessions:    newSessionStore(),
		tools:       newToolset(cfg.Tracker),
	}
	s.toolIndex = make(map[string]*Tool, len(s.tools))
	for i := range s.tools {
		s.toolIndex[s.tools[i].Name] = &s.tools[i]
	}
	return s, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// handleMCP is the single MCP endpoint supporting POST and DELETE per the
// Streamable HTTP transport spec (2025-11-25).
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session per the Streamable HTTP spec.
// Verifies the caller owns the session to prevent unauthorized termination.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	// The DELETE request must carry the same credential as initialize
	if sess.ownerToken != "" && ownerTokenFromRequest(r) != sess.ownerToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	// Authenticate before touching the payload so a bad credential never
	// reaches a tool dispatch
	if s.requireAuth {
		token, errMsg := auth.ExtractBearer(r.Header.Get("Authorization"))
		if errMsg != "" {
			s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "authentication required", nil)
			return
		}
		if !auth.KeyMatches(token, s.apiKey) {
			s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "invalid API key", nil)
			return
		}
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "request body too large", nil)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "invalid JSON", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// Validate protocol version header (not required on initialize).
	// Per spec: server default assumption if missing is 2025-03-26.
	if !isInitialize && protoVersion != "" {
		if !supportedProtocolVersions[protoVersion] {
			http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
			return
		}
	}

	// Non-initialize requests require a valid session
	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		if _, ok := s.sessions.get(sessionID); !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", isNotification,
		"session_id", sessionID,
	)

	// Handle notifications: accept and return HTTP 202 with no body
	if isNotification {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		sess := s.sessions.create(latestProtocolVersion, ownerTokenFromRequest(r))
		s.logger.Info("MCP session created",
			"session_id", sess.id,
			"protocol_version", sess.protocolVersion,
		)
		// Set the session ID header so the client can use it on subsequent requests
		w.Header().Set("Mcp-Session-Id", sess.id)
		s.sendJSONRPCResult(w, req.ID, s.initializeResult())
	case "tools/list":
		s.sendJSONRPCResult(w, req.ID, s.listToolsResult())
	case "tools/call":
		result, rpcErr := s.callTool(r.Context(), req.Params)
		if rpcErr != nil {
			s.sendJSONRPCError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		s.sendJSONRPCResult(w, req.ID, result)
	case "ping":
		s.sendJSONRPCResult(w, req.ID, map[string]any{})
	default:
		s.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

// initializeResult builds the result for the MCP initialize handshake.
func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "casebook-mcp",
			"version": s.version,
		},
	}
}

// listToolsResult builds the result for tools/list.
func (s *Server) listToolsResult() MCPListToolsResult {
	result := MCPListToolsResult{
		Tools: make([]MCPToolInfo, len(s.tools)),
	}
	for i, tool := range s.tools {
		result.Tools[i] = MCPToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}
	return result
}

// callTool resolves and executes one tools/call invocation. Protocol
// failures (bad params, unknown tool) come back as JSON-RPC errors;
// every other outcome is wrapped in the canonical tool-result envelope.
func (s *Server) callTool(ctx context.Context, rawParams json.RawMessage) (MCPCallToolResult, *JSONRPCError) {
	var params MCPCallToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return MCPCallToolResult{}, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid params"}
		}
	}

	if params.Name == "" {
		return MCPCallToolResult{}, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool name is required"}
	}

	tool, ok := s.toolIndex[params.Name]
	if !ok {
		return MCPCallToolResult{}, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool not found"}
	}

	s.logger.Debug("tools/call", "tool_name", params.Name)

	out, err := tool.Handler(ctx, params.Arguments)
	if err != nil {
		kind, message := classifyToolError(err)
		s.logger.Warn("tool call failed",
			"tool_name", params.Name,
			"kind", kind,
			"error", err,
		)
		payload, _ := json.Marshal(map[string]string{"kind": kind, "message": message})
		return MCPCallToolResult{
			Content: []MCPContent{{Type: "text", Text: string(payload)}},
			IsError: true,
		}, nil
	}

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return MCPCallToolResult{}, &JSONRPCError{Code: JSONRPCInternalError, Message: "failed to encode tool result"}
	}

	s.logger.Debug("tools/call complete", "tool_name", params.Name)

	return MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(text)}},
	}, nil
}

// ownerTokenFromRequest derives a stable identity string from the request's
// credential. Used to bind sessions to their creator.
func ownerTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
