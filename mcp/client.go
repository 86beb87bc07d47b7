package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mashiike/concierge"
)

var ErrToolFailed = errors.New("mcp tool failed")

// Config is the `mcp_servers` section of the concierge config, keyed by
// server name.
type Config struct {
	Servers map[string]ClientConfig `json:"mcp_servers"`
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(c),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	for name, server := range c.Servers {
		server.Name = name
		c.Servers[name] = server
	}
	return nil
}

type ClientConfig struct {
	Name     string            `json:"-"`
	Endpoint string            `json:"endpoint"`
	Command  string            `json:"command"`
	Env      map[string]string `json:"env"`
	Args     []string          `json:"args"`
}

type ClientMux struct {
	clients []*Client
}

// NewClientMuxFromConfig connects to every configured server, in name order.
func NewClientMuxFromConfig(ctx context.Context, cfg *Config) (*ClientMux, error) {
	mux := &ClientMux{}
	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c, err := newClientFromConfig(ctx, cfg.Servers[name])
		if err != nil {
			if cerr := mux.Close(); cerr != nil {
				slog.WarnContext(ctx, "failed to close clients", "details", cerr)
			}
			return nil, fmt.Errorf("failed to create client `%s`: %w", name, err)
		}
		mux.clients = append(mux.clients, c)
	}
	return mux, nil
}

func (mux *ClientMux) Close() error {
	var errs []error
	for _, c := range mux.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Register adds the tools of every server to reg.
func (mux *ClientMux) Register(ctx context.Context, reg *concierge.Registry) error {
	for _, c := range mux.clients {
		fns, err := c.Functions(ctx)
		if err != nil {
			return err
		}
		for _, fn := range fns {
			if err := reg.Register(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func newClientFromConfig(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Command == "" && cfg.Endpoint == "" {
		return nil, fmt.Errorf("either command or endpoint must be set")
	}
	if cfg.Command != "" && cfg.Endpoint != "" {
		return nil, fmt.Errorf("only one of command or endpoint must be set")
	}
	c := &Client{
		config: cfg,
	}
	if cfg.Command != "" {
		return prepareStdioClient(ctx, c)
	}
	return prepareSSEClient(ctx, c)
}

func prepareStdioClient(_ context.Context, c *Client) (*Client, error) {
	env := make([]string, 0, len(c.config.Env))
	for k, v := range c.config.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	impl, err := client.NewStdioMCPClient(c.config.Command, env, c.config.Args...)
	if err != nil {
		return nil, err
	}
	c.impl = impl
	return c, nil
}

func prepareSSEClient(ctx context.Context, c *Client) (*Client, error) {
	impl, err := client.NewSSEMCPClient(c.config.Endpoint)
	if err != nil {
		return nil, err
	}
	if err := impl.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start sse client: %w", err)
	}
	c.impl = impl
	return c, nil
}

type Client struct {
	config   ClientConfig
	impl     client.MCPClient
	onceInit sync.Once
	initErr  error
}

func (c *Client) Close() error {
	if c.impl == nil {
		return nil
	}
	return c.impl.Close()
}

func (c *Client) init(ctx context.Context) error {
	c.onceInit.Do(func() {
		initRequest := mcp.InitializeRequest{}
		initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initRequest.Params.ClientInfo = mcp.Implementation{
			Name:    "concierge",
			Version: concierge.Version,
		}
		var initResult *mcp.InitializeResult
		initResult, c.initErr = c.impl.Initialize(ctx, initRequest)
		if c.initErr != nil {
			return
		}
		slog.Info("initialized mcp client", "server", initResult.ServerInfo.Name, "version", initResult.ServerInfo.Version)
	})
	return c.initErr
}

// Functions lists the server's tools as concierge functions.
func (c *Client) Functions(ctx context.Context) ([]concierge.Function, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}
	tools, err := c.impl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	ret := make([]concierge.Function, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		s, err := toolSchema(tool)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "found mcp tool", "name", tool.Name, "description", tool.Description)
		ret = append(ret, &mcpFunction{
			name:        tool.Name,
			desc:        tool.Description,
			inputSchema: s,
			impl:        c.impl,
		})
	}
	return ret, nil
}

func toolSchema(tool mcp.Tool) (map[string]any, error) {
	raw := tool.RawInputSchema
	if len(raw) == 0 {
		bs, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input schema for tool `%s`: %w", tool.Name, err)
		}
		raw = bs
	}
	var s map[string]any
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input schema for tool `%s`: %w", tool.Name, err)
	}
	return s, nil
}

type toolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

type mcpFunction struct {
	name        string
	desc        string
	inputSchema map[string]any
	impl        toolCaller
}

var _ concierge.Function = (*mcpFunction)(nil)

func (f *mcpFunction) Name() string {
	return f.name
}

func (f *mcpFunction) Description() string {
	return f.desc
}

func (f *mcpFunction) InputSchema() map[string]any {
	return f.inputSchema
}

// Call returns the text content of the tool result.
func (f *mcpFunction) Call(ctx context.Context, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = f.name
	req.Params.Arguments = args
	slog.DebugContext(ctx, "calling mcp tool", "name", f.name, "args", args)
	res, err := f.impl.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool `%s`: %w", f.name, err)
	}
	texts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		text, ok := contentText(content)
		if !ok {
			slog.WarnContext(ctx, "skip non-text content", "name", f.name, "type", fmt.Sprintf("%T", content))
			continue
		}
		texts = append(texts, text)
	}
	text := strings.Join(texts, "\n")
	if res.IsError {
		return nil, fmt.Errorf("%w: `%s`: %s", ErrToolFailed, f.name, text)
	}
	return text, nil
}

func contentText(content mcp.Content) (string, bool) {
	if c, ok := content.(*mcp.TextContent); ok {
		return c.Text, true
	}
	bs, err := json.Marshal(content)
	if err != nil {
		return "", false
	}
	var c struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(bs, &c); err != nil || c.Type != "text" {
		return "", false
	}
	return c.Text, true
}

// ConfigFromConcierge reads the `mcp_servers` section.
func ConfigFromConcierge(cfg *concierge.Config) (*Config, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode mcp_servers: %w", err)
	}
	return &c, nil
}
