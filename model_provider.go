package concierge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mashiike/concierge/metadata"
)

type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceFunction ToolChoiceMode = "function"
)

// ToolChoice controls whether and which function the model has to call.
type ToolChoice struct {
	Mode     ToolChoiceMode `json:"mode"`
	Function string         `json:"function,omitempty"`
}

// ForceFunction makes the model call the named function.
func ForceFunction(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceFunction, Function: name}
}

type FinishReason string

const (
	FinishReasonEndTurn         FinishReason = "end_turn"
	FinishReasonToolUse         FinishReason = "tool_use"
	FinishReasonMaxTokens       FinishReason = "max_tokens"
	FinishReasonStopSequence    FinishReason = "stop_sequence"
	FinishReasonContentFiltered FinishReason = "content_filtered"
)

type CompletionRequest struct {
	Metadata    metadata.Metadata `json:"metadata"`
	ModelID     string            `json:"model_id"`
	ModelParams map[string]any    `json:"model_params"`
	System      string            `json:"system"`
	Messages    []Message         `json:"messages"`
	Functions   []Descriptor      `json:"functions,omitempty"`
	ToolChoice  ToolChoice        `json:"tool_choice"`
}

type CompletionResponse struct {
	Metadata     metadata.Metadata `json:"metadata,omitempty"`
	Message      Message           `json:"message"`
	FinishReason FinishReason      `json:"finish_reason,omitempty"`
}

// ModelProvider talks to a remote chat completion API.
type ModelProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

type ModelProviderFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

func (f ModelProviderFunc) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

// ErrRemoteCall matches every failure reported by a remote completion API.
var ErrRemoteCall = errors.New("remote call failure")

// RemoteCallError wraps network, auth and rate-limit errors of a provider.
type RemoteCallError struct {
	Provider string
	Code     string
	Err      error
}

func (e *RemoteCallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s [%s]: %v", ErrRemoteCall, e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrRemoteCall, e.Provider, e.Err)
}

func (e *RemoteCallError) Unwrap() []error {
	return []error{ErrRemoteCall, e.Err}
}

type ModelProviderManager struct {
	mu        sync.RWMutex
	providers map[string]ModelProvider
}

var (
	ErrModelProviderNameEmpty         = errors.New("model provider name is empty")
	ErrModelProviderAlreadyRegistered = errors.New("model provider already registered")
	ErrModelProviderNotFound          = errors.New("model provider not found")
)

func NewModelProviderManager() *ModelProviderManager {
	return &ModelProviderManager{
		providers: make(map[string]ModelProvider),
	}
}

func (m *ModelProviderManager) Register(name string, provider ModelProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		return ErrModelProviderNameEmpty
	}
	if _, ok := m.providers[name]; ok {
		return ErrModelProviderAlreadyRegistered
	}
	m.providers[name] = provider
	return nil
}

func (m *ModelProviderManager) Get(name string) (ModelProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	provider, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("model provider `%s`: %w", name, ErrModelProviderNotFound)
	}
	return provider, nil
}

func (m *ModelProviderManager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.providers[name]
	return ok
}

func (m *ModelProviderManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type contextKey string
