package concierge

import (
	"log/slog"
	"maps"
)

const (
	DefaultProxyName               = "user_proxy"
	DefaultAssistantName           = "assistant_agent"
	DefaultTerminationSentinel     = "TERMINATE"
	DefaultMaxConsecutiveAutoReply = 1
)

type options struct {
	modelID        string
	modelParams    map[string]any
	system         string
	forcedFunction string
	maxAutoReply   int
	sentinel       string
	autoReply      string
	assistantName  string
	proxyName      string
	stateHook      func(from, to ConversationState, msg Message)
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		modelParams:   map[string]any{},
		maxAutoReply:  DefaultMaxConsecutiveAutoReply,
		sentinel:      DefaultTerminationSentinel,
		assistantName: DefaultAssistantName,
		proxyName:     DefaultProxyName,
		logger:        slog.Default(),
	}
}

// Option configures a Dispatcher or a Conversation.
type Option func(*options)

func WithModelID(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

func WithModelParams(params map[string]any) Option {
	return func(o *options) {
		maps.Copy(o.modelParams, params)
	}
}

// WithSystemPrompt sets the system prompt sent with every completion.
func WithSystemPrompt(system string) Option {
	return func(o *options) {
		o.system = system
	}
}

// WithForcedFunction names the function the direct dispatcher forces the
// model to call. Ignored by conversations.
func WithForcedFunction(name string) Option {
	return func(o *options) {
		o.forcedFunction = name
	}
}

// WithMaxConsecutiveAutoReply sets the reply ceiling of a conversation.
func WithMaxConsecutiveAutoReply(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxAutoReply = n
	}
}

func WithTerminationSentinel(sentinel string) Option {
	return func(o *options) {
		o.sentinel = sentinel
	}
}

// WithAutoReply sets what the proxy answers to a plain assistant reply.
func WithAutoReply(content string) Option {
	return func(o *options) {
		o.autoReply = content
	}
}

func WithAgentNames(assistant, proxy string) Option {
	return func(o *options) {
		if assistant != "" {
			o.assistantName = assistant
		}
		if proxy != "" {
			o.proxyName = proxy
		}
	}
}

// WithStateHook observes every conversation state transition.
func WithStateHook(hook func(from, to ConversationState, msg Message)) Option {
	return func(o *options) {
		o.stateHook = hook
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
