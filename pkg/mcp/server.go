// Package mcp serves frugal's reporting views to admin tools over stdio
// using the Model Context Protocol.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/pario-ai/frugal/pkg/engine"
)

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	engine  *engine.Engine
	logger  *slog.Logger
	version string
}

// New creates a Server reporting on e.
func New(e *engine.Engine, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, logger: logger, version: version}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, *errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	s.logger.Debug("mcp request", "method", req.Method)
	switch req.Method {
	case "initialize":
		return s.reply(req, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "frugal", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "ping":
		return s.reply(req, map[string]any{})
	case "tools/list":
		return s.reply(req, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	}
	if len(req.ID) == 0 {
		// notifications never get a response
		return nil
	}
	return errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method)
}

func (s *Server) reply(req *Request, result any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return s.reply(req, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	return s.reply(req, handler(ctx, s, params.Arguments))
}

func (s *Server) write(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp marshal", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp write", "error", err)
	}
}
