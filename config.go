package concierge

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/go-jsonnet"
	"github.com/mashiike/concierge/jsonutil"
	aliasimporter "github.com/mashiike/go-jsonnet-alias-importer"
)

//go:embed default_config.jsonnet
var defaultConfig string

const (
	ModeDirect = "direct"
	ModeAgent  = "agent"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode            string         `json:"mode"`
	Provider        string         `json:"provider"`
	ModelID         string         `json:"model_id"`
	ModelParams     map[string]any `json:"model_params,omitempty"`
	Direct          DirectConfig   `json:"direct"`
	Agent           AgentConfig    `json:"agent"`
	RemoteFunctions []string       `json:"remote_functions,omitempty"`
	Server          ServerConfig   `json:"server"`

	path string
	raw  string
	vm   *jsonnet.VM
}

type DirectConfig struct {
	System         string   `json:"system"`
	ForcedFunction string   `json:"forced_function"`
	Functions      []string `json:"functions,omitempty"`
}

type AgentConfig struct {
	System                  string   `json:"system"`
	Functions               []string `json:"functions,omitempty"`
	MaxConsecutiveAutoReply *int     `json:"max_consecutive_auto_reply,omitempty"`
	TerminationSentinel     string   `json:"termination_sentinel"`
	AutoReply               string   `json:"auto_reply"`
	AssistantName           string   `json:"assistant_name"`
	ProxyName               string   `json:"proxy_name"`
}

type ServerConfig struct {
	Addr string     `json:"addr"`
	Path string     `json:"path"`
	CORS CORSConfig `json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins,omitempty"`
	AllowedMethods   []string `json:"allowed_methods,omitempty"`
	AllowedHeaders   []string `json:"allowed_headers,omitempty"`
	AllowCredentials bool     `json:"allow_credentials"`
}

type configLoader struct {
	extVars    map[string]string
	extCodes   map[string]string
	includesFS fs.FS
}

type ConfigOption func(*configLoader)

func WithExtVars(extVars map[string]string) ConfigOption {
	return func(l *configLoader) {
		l.extVars = extVars
	}
}

func WithExtCodes(extCodes map[string]string) ConfigOption {
	return func(l *configLoader) {
		l.extCodes = extCodes
	}
}

// WithIncludesFS makes fsys importable under the `includes` alias.
func WithIncludesFS(fsys fs.FS) ConfigOption {
	return func(l *configLoader) {
		l.includesFS = fsys
	}
}

func (l *configLoader) makeVM() *jsonnet.VM {
	vm := jsonutil.MakeVM()
	for k, v := range l.extVars {
		vm.ExtVar(k, v)
	}
	for k, v := range l.extCodes {
		vm.ExtCode(k, v)
	}
	importer := aliasimporter.New()
	if l.includesFS != nil {
		importer.Register("includes", l.includesFS)
	}
	vm.Importer(importer)
	return vm
}

// LoadConfig evaluates the Jsonnet file at path. An empty path loads the
// built-in default.
func LoadConfig(path string, optFns ...ConfigOption) (*Config, error) {
	if path == "" {
		return ParseConfig("default_config.jsonnet", defaultConfig, optFns...)
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(path, string(bs), optFns...)
}

func DefaultConfig() (*Config, error) {
	return LoadConfig("")
}

func ParseConfig(path, raw string, optFns ...ConfigOption) (*Config, error) {
	l := &configLoader{}
	for _, fn := range optFns {
		fn(l)
	}
	cfg := &Config{
		path: path,
		raw:  raw,
		vm:   l.makeVM(),
	}
	if err := cfg.Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Mode == "" {
		cfg.Mode = ModeDirect
	}
	if cfg.Mode != ModeDirect && cfg.Mode != ModeAgent {
		return fmt.Errorf("%w: unknown mode `%s`", ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Provider == "" {
		return fmt.Errorf("%w: provider is empty", ErrInvalidConfig)
	}
	if cfg.ModelParams == nil {
		cfg.ModelParams = make(map[string]any)
	}
	if cfg.Agent.MaxConsecutiveAutoReply != nil && *cfg.Agent.MaxConsecutiveAutoReply < 0 {
		return fmt.Errorf("%w: max_consecutive_auto_reply must not be negative", ErrInvalidConfig)
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = "/get_result"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":1950"
	}
	return nil
}

// Decode evaluates the config again into v, so that other packages can read
// their own sections.
func (cfg *Config) Decode(v any) error {
	vm := cfg.vm
	if vm == nil {
		vm = jsonutil.MakeVM()
	}
	jsonStr, err := vm.EvaluateAnonymousSnippet(cfg.path, cfg.raw)
	if err != nil {
		return fmt.Errorf("evaluate config: %w", err)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (cfg *Config) Path() string {
	return cfg.path
}

// Options returns the Dispatcher or Conversation options for the configured
// mode. System prompts are rendered against the given functions.
func (cfg *Config) Options(functions []Descriptor) ([]Option, error) {
	opts := []Option{
		WithModelID(cfg.ModelID),
		WithModelParams(cfg.ModelParams),
	}
	switch cfg.Mode {
	case ModeAgent:
		sentinel := cfg.Agent.TerminationSentinel
		if sentinel == "" {
			sentinel = DefaultTerminationSentinel
		}
		system, err := RenderSystemPrompt(cfg.Agent.System, PromptData{
			Functions: functions,
			Sentinel:  sentinel,
		})
		if err != nil {
			return nil, fmt.Errorf("agent system prompt: %w", err)
		}
		opts = append(opts,
			WithSystemPrompt(system),
			WithTerminationSentinel(sentinel),
			WithAutoReply(cfg.Agent.AutoReply),
			WithAgentNames(cfg.Agent.AssistantName, cfg.Agent.ProxyName),
		)
		if cfg.Agent.MaxConsecutiveAutoReply != nil {
			opts = append(opts, WithMaxConsecutiveAutoReply(*cfg.Agent.MaxConsecutiveAutoReply))
		}
	default:
		system, err := RenderSystemPrompt(cfg.Direct.System, PromptData{
			Functions: functions,
		})
		if err != nil {
			return nil, fmt.Errorf("direct system prompt: %w", err)
		}
		opts = append(opts,
			WithSystemPrompt(system),
			WithForcedFunction(cfg.Direct.ForcedFunction),
		)
	}
	return opts, nil
}

// FunctionNames returns the functions enabled for the configured mode. Empty
// means every registered function.
func (cfg *Config) FunctionNames() []string {
	if cfg.Mode == ModeAgent {
		return cfg.Agent.Functions
	}
	return cfg.Direct.Functions
}
