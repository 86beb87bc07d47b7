package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/cleaning"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := concierge.NewRegistry()
	require.NoError(t, cleaning.Register(reg, cleaning.DefaultCatalog()))
	return NewServer("concierge", "v0.0.0", reg)
}

func handle(t *testing.T, s *Server, msg string) map[string]any {
	t.Helper()
	resp := s.HandleMessage(context.Background(), json.RawMessage(msg))
	bs, err := json.Marshal(resp)
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(bs, &v))
	return v
}

func TestServerListTools(t *testing.T) {
	s := newTestServer(t)
	resp := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "unexpected response: %v", resp)
	tools, ok := result["tools"].([]any)
	require.True(t, ok)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	require.ElementsMatch(t, []string{
		cleaning.FunctionAnswerUserQuery,
		cleaning.FunctionConnectToHumanAgent,
		cleaning.FunctionAvailabilityAndPrices,
	}, names)
}

func TestServerCallTool(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name    string
		msg     string
		text    string
		isError bool
	}{
		{
			name: "hit",
			msg:  `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"answer_user_query","arguments":{"content":"What services do you provide?"}}}`,
			text: `["General cleaning","Specialized cleaning"]`,
		},
		{
			name: "miss",
			msg:  `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"answer_user_query","arguments":{"content":"Do you clean windows?"}}}`,
			text: "",
		},
		{
			name:    "invalid arguments",
			msg:     `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"answer_user_query","arguments":{}}}`,
			isError: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := handle(t, s, c.msg)
			result, ok := resp["result"].(map[string]any)
			require.True(t, ok, "unexpected response: %v", resp)
			content, ok := result["content"].([]any)
			require.True(t, ok)
			require.Len(t, content, 1)
			isError, _ := result["isError"].(bool)
			require.Equal(t, c.isError, isError)
			if !c.isError {
				text, _ := content[0].(map[string]any)["text"].(string)
				require.Equal(t, c.text, text)
			}
		})
	}
}

type fakeToolCaller struct {
	req    mcp.CallToolRequest
	result *mcp.CallToolResult
	err    error
}

func (f *fakeToolCaller) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.req = req
	return f.result, f.err
}

func TestFunctionCall(t *testing.T) {
	caller := &fakeToolCaller{
		result: &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Type: "text", Text: "first"},
				&mcp.ImageContent{Type: "image", Data: "aGVsbG8=", MIMEType: "image/png"},
				&mcp.TextContent{Type: "text", Text: "second"},
			},
		},
	}
	fn := &mcpFunction{
		name:        "lookup",
		desc:        "lookup something",
		inputSchema: map[string]any{"type": "object"},
		impl:        caller,
	}
	result, err := fn.Call(context.Background(), map[string]any{"content": "hello"})
	require.NoError(t, err)
	require.Equal(t, "first\nsecond", result)
	require.Equal(t, "lookup", caller.req.Params.Name)
	require.Equal(t, map[string]any{"content": "hello"}, caller.req.Params.Arguments)

	caller.result = &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Type: "text", Text: "boom"},
		},
	}
	_, err = fn.Call(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrToolFailed)
	require.ErrorContains(t, err, "boom")

	caller.err = errors.New("connection refused")
	_, err = fn.Call(context.Background(), map[string]any{})
	require.ErrorContains(t, err, "connection refused")
}

func TestConfigFromConcierge(t *testing.T) {
	cfg, err := concierge.ParseConfig("test.jsonnet", `{
  provider: 'openai',
  mcp_servers: {
    weather: { endpoint: 'http://localhost:8080/sse' },
    files: { command: 'npx', args: ['-y', 'server-filesystem'], env: { DEBUG: '1' } },
  },
}`)
	require.NoError(t, err)
	mcpCfg, err := ConfigFromConcierge(cfg)
	require.NoError(t, err)
	require.Len(t, mcpCfg.Servers, 2)
	require.Equal(t, "weather", mcpCfg.Servers["weather"].Name)
	require.Equal(t, "http://localhost:8080/sse", mcpCfg.Servers["weather"].Endpoint)
	require.Equal(t, "npx", mcpCfg.Servers["files"].Command)
	require.Equal(t, []string{"-y", "server-filesystem"}, mcpCfg.Servers["files"].Args)
	require.Equal(t, map[string]string{"DEBUG": "1"}, mcpCfg.Servers["files"].Env)
}

func TestNewClientFromConfigInvalid(t *testing.T) {
	_, err := newClientFromConfig(context.Background(), ClientConfig{Name: "empty"})
	require.Error(t, err)
	_, err = newClientFromConfig(context.Background(), ClientConfig{Name: "both", Command: "npx", Endpoint: "http://localhost"})
	require.Error(t, err)
}
