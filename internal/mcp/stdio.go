// ABOUTME: Stdio transport for the MCP bridge, framing JSON-RPC as one message per line
// ABOUTME: Used when an MCP host launches casebook-mcp as a child process

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ServeStdio handles newline-delimited JSON-RPC frames from in, writing one
// response line per request to out. Notifications produce no output. The
// loop runs until in reaches EOF, the context is cancelled, or a write
// fails. Sessions and the shared API key do not apply on this transport;
// the host process owns the pipe.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), MaxRequestBodySize)

	enc := json.NewEncoder(out)

	s.logger.Info("MCP stdio transport ready")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := s.handleFrame(ctx, line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}

	s.logger.Info("MCP stdio transport closed")
	return nil
}

// handleFrame parses and dispatches one JSON-RPC message. A nil response
// means the message was a notification.
func (s *Server) handleFrame(ctx context.Context, data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, JSONRPCParseError, "invalid JSON")
	}

	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}

	if len(req.ID) == 0 || string(req.ID) == "null" {
		s.logger.Debug("accepted MCP notification", "method", req.Method)
		return nil
	}

	s.logger.Debug("MCP request", "method", req.Method)

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, s.initializeResult())
	case "tools/list":
		return resultResponse(req.ID, s.listToolsResult())
	case "tools/call":
		result, rpcErr := s.callTool(ctx, req.Params)
		if rpcErr != nil {
			return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		}
		return resultResponse(req.ID, result)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &JSONRPCError{Code: code, Message: message}}
}
