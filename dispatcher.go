package concierge

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Songmu/flextime"
	"github.com/mashiike/concierge/metadata"
)

var (
	ErrNoFunctionCall  = errors.New("model did not call a function")
	ErrNoFunctions     = errors.New("no functions registered")
	ErrProviderMissing = errors.New("model provider is required")
)

// Dispatcher answers a query with exactly one completion round trip: the
// model is forced to call a function and the selected function's result is
// the answer.
type Dispatcher struct {
	provider   ModelProvider
	registry   *Registry
	toolChoice ToolChoice
	opts       options
}

var _ Answerer = (*Dispatcher)(nil)

func NewDispatcher(provider ModelProvider, registry *Registry, optFns ...Option) (*Dispatcher, error) {
	if provider == nil {
		return nil, ErrProviderMissing
	}
	if registry == nil || registry.Len() == 0 {
		return nil, ErrNoFunctions
	}
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	var choice ToolChoice
	switch {
	case o.forcedFunction != "":
		if !registry.Exists(o.forcedFunction) {
			return nil, fmt.Errorf("forced function `%s`: %w", o.forcedFunction, ErrFunctionNotFound)
		}
		choice = ForceFunction(o.forcedFunction)
	case registry.Len() == 1:
		choice = ForceFunction(registry.Names()[0])
	default:
		choice = ToolChoice{Mode: ToolChoiceRequired}
	}
	return &Dispatcher{
		provider:   provider,
		registry:   registry,
		toolChoice: choice,
		opts:       o,
	}, nil
}

func (d *Dispatcher) ToolChoice() ToolChoice {
	return d.toolChoice
}

func (d *Dispatcher) Answer(ctx context.Context, query string) (*Answer, error) {
	return d.Dispatch(ctx, query)
}

// Dispatch sends the query to the model and executes the function it calls.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) (*Answer, error) {
	start := flextime.Now()
	transcript := Transcript{UserMessage(d.opts.proxyName, query)}
	req := &CompletionRequest{
		Metadata:    metadata.Metadata{},
		ModelID:     d.opts.modelID,
		ModelParams: d.opts.modelParams,
		System:      d.opts.system,
		Messages:    slices.Clone(transcript),
		Functions:   d.registry.DescribeAll(),
		ToolChoice:  d.toolChoice,
	}
	d.opts.logger.DebugContext(ctx, "dispatch query", "query", query, "tool_choice", d.toolChoice.Mode, "function", d.toolChoice.Function)
	resp, err := d.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	reply := resp.Message
	reply.Role = RoleAssistant
	if reply.Name == "" {
		reply.Name = d.opts.assistantName
	}
	transcript = append(transcript, reply)
	if !reply.HasToolCall() {
		return nil, ErrNoFunctionCall
	}
	call := *reply.ToolCall
	result, err := d.registry.Invoke(ctx, call)
	if err != nil {
		return nil, err
	}
	content, err := FormatResult(result)
	if err != nil {
		return nil, err
	}
	transcript = append(transcript, FunctionResultMessage(d.opts.proxyName, &call, content))
	md := metadata.Metadata{}
	md.MergeInPlace(resp.Metadata)
	metadata.SetFunctionName(md, call.Name)
	metadata.SetElapsed(md, flextime.Since(start))
	d.opts.logger.InfoContext(ctx, "dispatched", "function", call.Name, "matched", result != nil)
	return &Answer{
		Value:      result,
		Function:   call.Name,
		Transcript: transcript,
		Metadata:   md,
	}, nil
}
