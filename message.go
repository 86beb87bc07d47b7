package concierge

import (
	"errors"
	"time"

	"github.com/Songmu/flextime"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

var (
	ErrInvalidMessageRole = errors.New("invalid message role")
)

// Message is one entry of a conversation transcript.
type Message struct {
	Role      string    `json:"role"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	ToolCall  *ToolCall `json:"tool_call,omitempty"`
	Terminate bool      `json:"terminate,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCall is a function invocation requested by the model.
// Arguments holds the raw JSON text exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func UserMessage(name, content string) Message {
	return Message{Role: RoleUser, Name: name, Content: content, CreatedAt: flextime.Now()}
}

func AssistantMessage(name, content string) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content, CreatedAt: flextime.Now()}
}

// FunctionResultMessage answers the given tool call.
func FunctionResultMessage(name string, call *ToolCall, content string) Message {
	msg := Message{Role: RoleFunction, Name: name, Content: content, CreatedAt: flextime.Now()}
	if call != nil {
		msg.ToolCall = &ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
	}
	return msg
}

// HasToolCall reports whether the message asks for a function invocation.
func (m Message) HasToolCall() bool {
	return m.Role == RoleAssistant && m.ToolCall != nil && m.ToolCall.Name != ""
}

type Transcript []Message

func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// CountRole returns how many messages were authored with the given role.
func (t Transcript) CountRole(role string) int {
	var n int
	for _, msg := range t {
		if msg.Role == role {
			n++
		}
	}
	return n
}
