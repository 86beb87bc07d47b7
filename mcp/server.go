package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fujiwara/ridge"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mashiike/concierge"
)

// Server publishes every function of a registry as an MCP tool.
type Server struct {
	s *server.MCPServer
}

func NewServer(serverName string, version string, registry *concierge.Registry) *Server {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
	)
	for _, d := range registry.DescribeAll() {
		addTool(s, d, registry)
	}
	return &Server{s: s}
}

func addTool(s *server.MCPServer, d concierge.Descriptor, registry *concierge.Registry) {
	bs, err := json.Marshal(d.Parameters)
	if err != nil {
		slog.Warn("failed to marshal parameters", "name", d.Name, "details", err)
		return
	}
	tool := mcp.NewToolWithRawSchema(d.Name, d.Description, bs)
	s.AddTool(tool, newToolHandler(d.Name, registry))
	slog.Info("add mcp tool", "name", d.Name)
}

func (s *Server) ListenAndServeSSE(addr string, opts ...server.SSEOption) error {
	baseURL := addr
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse address: %w", err)
	}
	if u.Hostname() == "" {
		u.Host = "localhost" + u.Host
	}
	if hostname := u.Hostname(); hostname == "localhost" || hostname == "127.0.0.1" {
		u.Scheme = "http"
	}
	options := []server.SSEOption{
		server.WithBaseURL(u.String()),
	}
	options = append(options, opts...)
	sseServer := server.NewSSEServer(s.s, options...)
	ridge.Run(addr, "/", sseServer)
	return nil
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.s)
}

// HandleMessage processes one JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.s.HandleMessage(ctx, message)
}

func newToolHandler(name string, registry *concierge.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, mcpReq mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(mcpReq.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal arguments: %v", err)), nil
		}
		result, err := registry.Invoke(ctx, concierge.ToolCall{
			Name:      name,
			Arguments: string(args),
		})
		if err != nil {
			return errorResult(fmt.Sprintf("failed to call: %v", err)), nil
		}
		text, err := concierge.FormatResult(result)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to format result: %v", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}
