package concierge_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/metadata"
)

// scriptedProvider replays replies in order and repeats the last one.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []concierge.Message
	err      error
	requests []*concierge.CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req *concierge.CompletionRequest) (*concierge.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := min(len(p.requests), len(p.replies)) - 1
	md := metadata.Metadata{}
	metadata.SetInputTokens(md, 10)
	metadata.SetOutputTokens(md, 2)
	metadata.SetTotalTokens(md, 12)
	return &concierge.CompletionResponse{
		Message:  p.replies[idx],
		Metadata: md,
	}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func textReply(content string) concierge.Message {
	return concierge.Message{Role: concierge.RoleAssistant, Content: content}
}

func toolCallReply(name, arguments string) concierge.Message {
	return concierge.Message{
		Role: concierge.RoleAssistant,
		ToolCall: &concierge.ToolCall{
			ID:        fmt.Sprintf("call_%s", name),
			Name:      name,
			Arguments: arguments,
		},
	}
}
