package concierge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/Songmu/flextime"
	"github.com/mashiike/concierge/metadata"
)

//go:generate go tool enumer -type=ConversationState -trimprefix=State -transform=snake -output=conversation_state.gen.go
type ConversationState int

const (
	StateAwaitingAssistantReply ConversationState = iota
	StateAwaitingProxyReply
	StateTerminated
)

// Conversation runs a bounded exchange between an assistant backed by the
// model and a proxy that executes requested functions and otherwise replies
// automatically. It never asks for human input.
//
// After each assistant reply the termination flag is checked first and the
// reply ceiling second, so the model is called at most
// MaxConsecutiveAutoReply+1 times.
type Conversation struct {
	provider ModelProvider
	registry *Registry
	opts     options
}

var _ Answerer = (*Conversation)(nil)

func NewConversation(provider ModelProvider, registry *Registry, optFns ...Option) (*Conversation, error) {
	if provider == nil {
		return nil, ErrProviderMissing
	}
	if registry == nil {
		registry = NewRegistry()
	}
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return &Conversation{
		provider: provider,
		registry: registry,
		opts:     o,
	}, nil
}

func (c *Conversation) Answer(ctx context.Context, query string) (*Answer, error) {
	return c.Run(ctx, query)
}

// Run starts the conversation with query as the proxy's opening message.
func (c *Conversation) Run(ctx context.Context, query string) (*Answer, error) {
	start := flextime.Now()
	functions := c.registry.DescribeAll()
	choice := ToolChoice{Mode: ToolChoiceAuto}
	if len(functions) == 0 {
		choice = ToolChoice{Mode: ToolChoiceNone}
	}
	md := metadata.Metadata{}
	transcript := Transcript{UserMessage(c.opts.proxyName, query)}
	state := StateAwaitingAssistantReply
	var autoReplies int
	var lastFunction string
	for state != StateTerminated {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		switch state {
		case StateAwaitingAssistantReply:
			resp, err := c.provider.Complete(ctx, &CompletionRequest{
				Metadata:    metadata.Metadata{},
				ModelID:     c.opts.modelID,
				ModelParams: c.opts.modelParams,
				System:      c.opts.system,
				Messages:    slices.Clone(transcript),
				Functions:   functions,
				ToolChoice:  choice,
			})
			if err != nil {
				return nil, fmt.Errorf("complete: %w", err)
			}
			metadata.AddUsage(md, resp.Metadata)
			reply := c.ingest(resp.Message)
			transcript = append(transcript, reply)
			switch {
			case reply.Terminate:
				state = c.transition(ctx, state, StateTerminated, reply)
			case autoReplies >= c.opts.maxAutoReply:
				c.opts.logger.DebugContext(ctx, "auto reply ceiling reached", "auto_replies", autoReplies)
				state = c.transition(ctx, state, StateTerminated, reply)
			default:
				state = c.transition(ctx, state, StateAwaitingProxyReply, reply)
			}
		case StateAwaitingProxyReply:
			last, _ := transcript.Last()
			var msg Message
			if last.HasToolCall() {
				result, err := c.registry.Invoke(ctx, *last.ToolCall)
				if err != nil {
					return nil, err
				}
				content, err := FormatResult(result)
				if err != nil {
					return nil, err
				}
				msg = FunctionResultMessage(c.opts.proxyName, last.ToolCall, content)
				lastFunction = last.ToolCall.Name
			} else {
				msg = UserMessage(c.opts.proxyName, c.opts.autoReply)
			}
			transcript = append(transcript, msg)
			autoReplies++
			state = c.transition(ctx, state, StateAwaitingAssistantReply, msg)
		}
	}
	last, _ := transcript.Last()
	metadata.SetAutoReplies(md, int64(autoReplies))
	metadata.SetElapsed(md, flextime.Since(start))
	if lastFunction != "" {
		metadata.SetFunctionName(md, lastFunction)
	}
	c.opts.logger.InfoContext(ctx, "conversation finished", "auto_replies", autoReplies, "terminated", last.Terminate, "messages", len(transcript))
	return &Answer{
		Value:      last.Content,
		Function:   lastFunction,
		Terminated: last.Terminate,
		Transcript: transcript,
		Metadata:   md,
	}, nil
}

// ingest normalizes an assistant reply and sets its termination flag. The
// sentinel is only looked at here; the loop reads Terminate.
func (c *Conversation) ingest(msg Message) Message {
	msg.Role = RoleAssistant
	if msg.Name == "" {
		msg.Name = c.opts.assistantName
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = flextime.Now()
	}
	if msg.Terminate || c.opts.sentinel == "" {
		return msg
	}
	trimmed := strings.TrimRightFunc(msg.Content, unicode.IsSpace)
	if strings.HasSuffix(trimmed, c.opts.sentinel) {
		msg.Terminate = true
		msg.Content = strings.TrimRightFunc(strings.TrimSuffix(trimmed, c.opts.sentinel), unicode.IsSpace)
	}
	return msg
}

func (c *Conversation) transition(ctx context.Context, from, to ConversationState, msg Message) ConversationState {
	c.opts.logger.DebugContext(ctx, "conversation state", "from", from, "to", to, "role", msg.Role, "name", msg.Name)
	if c.opts.stateHook != nil {
		c.opts.stateHook(from, to, msg)
	}
	return to
}
