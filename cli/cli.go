package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/cleaning"
	"github.com/mashiike/concierge/jsonutil"
	"github.com/mashiike/concierge/mcp"
	"github.com/mashiike/concierge/provider/bedrock"
	"github.com/mashiike/concierge/provider/openai"
	"github.com/mashiike/concierge/remote"
	"github.com/mashiike/concierge/server"
	"github.com/mashiike/slogutils"
)

type CLI struct {
	Config    string            `help:"Config file (jsonnet). Empty uses the built-in config" env:"CONCIERGE_CONFIG" default:""`
	Mode      string            `help:"Override the configured mode" enum:",direct,agent" default:""`
	LogFormat string            `help:"Log format" enum:"json,text" default:"json"`
	Color     bool              `help:"Enable color output" negatable:"" default:"true"`
	Debug     bool              `help:"Enable debug mode" env:"DEBUG"`
	ExtVar    map[string]string `help:"External variables external string values for Jsonnet" env:"EXT_VAR"`
	ExtCode   map[string]string `help:"External code external string values for Jsonnet" env:"EXT_CODE"`
	Includes  string            `help:"Includes directory" default:"./includes"`
	Serve     ServeOption       `cmd:"" help:"Serve the query endpoint"`
	Ask       AskOption         `cmd:"" help:"Answer one query"`
	Functions FunctionsOption   `cmd:"" help:"List the enabled functions"`
	MCP       MCPOption         `cmd:"" name:"mcp" help:"Serve the functions as a MCP server"`
	Worker    WorkerOption      `cmd:"" help:"Serve one function as a remote function worker"`
	Version   struct{}          `cmd:"" help:"Show version"`
}

type ServeOption struct {
	Addr string `help:"Listen address, overrides server.addr"`
}

type AskOption struct {
	Query        string `arg:"" help:"User query"`
	OutputFormat string `help:"Output format" enum:"json,text" default:"text"`
	DumpMetadata bool   `help:"Dump metadata if output format is text"`
}

type FunctionsOption struct {
	Sample bool `help:"Print a sample arguments object for each function"`
}

type MCPOption struct {
	Transport string `help:"MCP transport" enum:"stdio,sse" default:"stdio"`
	Addr      string `help:"Listen address for sse transport" default:":8080"`
}

type WorkerOption struct {
	Function string `arg:"" help:"Function name"`
	Addr     string `help:"Listen address" default:":8090"`
	Endpoint string `help:"Public endpoint of the worker" default:""`
}

func newLogger(level slog.Level, format string, c bool) *slog.Logger {
	var f func(io.Writer, *slog.HandlerOptions) slog.Handler
	switch format {
	case "text":
		f = func(w io.Writer, ho *slog.HandlerOptions) slog.Handler {
			return slog.NewTextHandler(w, ho)
		}
	default:
		f = func(w io.Writer, ho *slog.HandlerOptions) slog.Handler {
			return slog.NewJSONHandler(w, ho)
		}
	}
	var modifierFuncs map[slog.Level]slogutils.ModifierFunc
	if c {
		modifierFuncs = map[slog.Level]slogutils.ModifierFunc{
			slog.LevelDebug: slogutils.Color(color.FgBlack),
			slog.LevelInfo:  nil,
			slog.LevelWarn:  slogutils.Color(color.FgYellow),
			slog.LevelError: slogutils.Color(color.FgRed, color.Bold),
		}
	}
	middleware := slogutils.NewMiddleware(
		f,
		slogutils.MiddlewareOptions{
			Writer:        os.Stderr,
			ModifierFuncs: modifierFuncs,
			HandlerOptions: &slog.HandlerOptions{
				Level: level,
			},
		},
	)
	return slog.New(middleware)
}

func (c *CLI) Run(ctx context.Context) int {
	k := kong.Parse(c,
		kong.Name("concierge"),
		kong.Description("Concierge answers customer queries with LLM function calling."),
		kong.UsageOnError(),
	)
	logLevel := slog.LevelInfo
	if c.Debug {
		logLevel = slog.LevelDebug
	}
	logger := newLogger(logLevel, c.LogFormat, c.Color)
	slog.SetDefault(logger)
	if err := c.run(ctx, k, logger); err != nil {
		logger.Error("runtime error", "details", err)
		return 1
	}
	return 0
}

func (c *CLI) run(ctx context.Context, k *kong.Context, logger *slog.Logger) error {
	cmd := k.Command()
	if cmd == "version" {
		fmt.Printf("concierge version %s\n", concierge.Version)
		return nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Close()
	switch cmd {
	case "serve":
		return c.runServe(ctx, app)
	case "ask <query>":
		return c.runAsk(ctx, app)
	case "functions":
		return c.runFunctions(ctx, app)
	case "mcp":
		return c.runMCP(ctx, app)
	case "worker <function>":
		return c.runWorker(ctx, app)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (c *CLI) loadConfig() (*concierge.Config, error) {
	var opts []concierge.ConfigOption
	if c.ExtVar != nil {
		opts = append(opts, concierge.WithExtVars(c.ExtVar))
	}
	if c.ExtCode != nil {
		opts = append(opts, concierge.WithExtCodes(c.ExtCode))
	}
	if c.Includes != "" {
		if _, err := os.Stat(c.Includes); err == nil {
			opts = append(opts, concierge.WithIncludesFS(os.DirFS(c.Includes)))
		}
	}
	cfg, err := concierge.LoadConfig(c.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.Mode != "" {
		cfg.Mode = c.Mode
	}
	return cfg, nil
}

func (c *CLI) runServe(ctx context.Context, app *app) error {
	answerer, err := app.Answerer()
	if err != nil {
		return err
	}
	h, err := server.NewHandler(server.HandlerConfig{
		Answerer:   answerer,
		Registry:   app.enabled,
		AnswerPath: app.cfg.Server.Path,
		CORS:       app.cfg.Server.CORS,
		Logger:     app.logger,
	})
	if err != nil {
		return fmt.Errorf("new handler: %w", err)
	}
	addr := app.cfg.Server.Addr
	if c.Serve.Addr != "" {
		addr = c.Serve.Addr
	}
	app.logger.InfoContext(ctx, "serve", "addr", addr, "path", app.cfg.Server.Path, "mode", app.cfg.Mode)
	server.Run(addr, h)
	return nil
}

func (c *CLI) runAsk(ctx context.Context, app *app) error {
	answerer, err := app.Answerer()
	if err != nil {
		return err
	}
	answer, err := answerer.Answer(ctx, c.Ask.Query)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	switch c.Ask.OutputFormat {
	case "json":
		if err := enc.Encode(answer); err != nil {
			return fmt.Errorf("encode answer: %w", err)
		}
	default:
		if err := enc.Encode(answer.Value); err != nil {
			return fmt.Errorf("encode answer: %w", err)
		}
		if c.Ask.DumpMetadata {
			fmt.Fprint(os.Stderr, answer.Metadata.String())
		}
	}
	return nil
}

func (c *CLI) runFunctions(_ context.Context, app *app) error {
	descriptors := app.enabled.DescribeAll()
	if !c.Functions.Sample {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	}
	samples := make(map[string]any, len(descriptors))
	for _, d := range descriptors {
		samples[d.Name] = jsonutil.DefaultSampleGenerator.Generate(d.Parameters)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(samples)
}

func (c *CLI) runMCP(ctx context.Context, app *app) error {
	s := mcp.NewServer("concierge", concierge.Version, app.enabled)
	switch c.MCP.Transport {
	case "sse":
		app.logger.InfoContext(ctx, "serve mcp", "transport", "sse", "addr", c.MCP.Addr)
		return s.ListenAndServeSSE(c.MCP.Addr)
	default:
		return s.ServeStdio()
	}
}

func (c *CLI) runWorker(ctx context.Context, app *app) error {
	fn, err := app.registry.Resolve(c.Worker.Function)
	if err != nil {
		return err
	}
	endpoint := c.Worker.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost" + c.Worker.Addr
		if !strings.HasPrefix(c.Worker.Addr, ":") {
			endpoint = "http://" + c.Worker.Addr
		}
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	h, err := remote.NewHandler(remote.HandlerConfig{
		Endpoint: u,
		Function: fn,
		Logger:   app.logger,
	})
	if err != nil {
		return fmt.Errorf("new worker handler: %w", err)
	}
	app.logger.InfoContext(ctx, "serve worker", "function", fn.Name(), "addr", c.Worker.Addr, "endpoint", u.String())
	server.Run(c.Worker.Addr, h)
	return nil
}

// app holds everything built from a loaded config.
type app struct {
	cfg       *concierge.Config
	logger    *slog.Logger
	providers *concierge.ModelProviderManager
	registry  *concierge.Registry
	enabled   *concierge.Registry
	mcpMux    *mcp.ClientMux
}

func newApp(ctx context.Context, cfg *concierge.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		providers: concierge.NewModelProviderManager(),
		registry:  concierge.NewRegistry(),
	}
	if err := a.providers.Register(openai.ProviderName, openai.New()); err != nil {
		return nil, err
	}
	if err := a.providers.Register(bedrock.ProviderName, bedrock.New()); err != nil {
		return nil, err
	}
	catalog, err := cleaning.CatalogFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := cleaning.Register(a.registry, catalog); err != nil {
		return nil, err
	}
	if err := remote.Register(ctx, a.registry, cfg.RemoteFunctions...); err != nil {
		return nil, err
	}
	mcpCfg, err := mcp.ConfigFromConcierge(cfg)
	if err != nil {
		return nil, err
	}
	if len(mcpCfg.Servers) > 0 {
		a.mcpMux, err = mcp.NewClientMuxFromConfig(ctx, mcpCfg)
		if err != nil {
			return nil, err
		}
		if err := a.mcpMux.Register(ctx, a.registry); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.enabled, err = a.registry.Subset(cfg.FunctionNames()...)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.DebugContext(ctx, "functions enabled", "mode", cfg.Mode, "functions", a.enabled.Names())
	return a, nil
}

// Answerer builds the dispatcher or the conversation for the configured mode.
func (a *app) Answerer() (concierge.Answerer, error) {
	provider, err := a.providers.Get(a.cfg.Provider)
	if err != nil {
		return nil, err
	}
	opts, err := a.cfg.Options(a.enabled.DescribeAll())
	if err != nil {
		return nil, err
	}
	opts = append(opts, concierge.WithLogger(a.logger))
	switch a.cfg.Mode {
	case concierge.ModeAgent:
		return concierge.NewConversation(provider, a.enabled, opts...)
	case concierge.ModeDirect:
		return concierge.NewDispatcher(provider, a.enabled, opts...)
	default:
		return nil, fmt.Errorf("mode `%s`: %w", a.cfg.Mode, concierge.ErrInvalidConfig)
	}
}

func (a *app) Close() {
	if a.mcpMux == nil {
		return
	}
	if err := a.mcpMux.Close(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("failed to close mcp clients", "details", err)
	}
}
