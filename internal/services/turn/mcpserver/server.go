package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "euroturn"

// Server serves the turn tools over one MCP transport.
type Server struct {
	mcpServer *mcp.Server
}

// New registers every turn tool against c.
func New(c Commands, version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	mcp.AddTool(server, StatusTool(), StatusHandler(c))
	mcp.AddTool(server, ReadinessTool(), ReadinessHandler(c))
	mcp.AddTool(server, AdvanceExternalTool(), AdvanceExternalHandler(c))
	mcp.AddTool(server, GenerateActionsTool(), GenerateActionsHandler(c))
	mcp.AddTool(server, PublishTool(), PublishHandler(c))
	mcp.AddTool(server, CommitLockTool(), CommitLockHandler(c))
	mcp.AddTool(server, ResolveTool(), ResolveHandler(c))
	return &Server{mcpServer: server}
}

// Serve runs the server on stdio until ctx ends or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
