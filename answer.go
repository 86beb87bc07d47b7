package concierge

import (
	"context"

	"github.com/mashiike/concierge/metadata"
)

// Answer is the outcome of handling one query.
type Answer struct {
	// Value is the function result (direct mode) or the final message
	// content (agent mode). A canned-data miss leaves it nil.
	Value      any               `json:"value"`
	Function   string            `json:"function,omitempty"`
	Terminated bool              `json:"terminated,omitempty"`
	Transcript Transcript        `json:"transcript,omitempty"`
	Metadata   metadata.Metadata `json:"metadata,omitempty"`
}

// Answerer turns a user query into an Answer.
type Answerer interface {
	Answer(ctx context.Context, query string) (*Answer, error)
}

type AnswererFunc func(ctx context.Context, query string) (*Answer, error)

func (f AnswererFunc) Answer(ctx context.Context, query string) (*Answer, error) {
	return f(ctx, query)
}
