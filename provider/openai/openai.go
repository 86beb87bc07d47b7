package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/jsonutil"
	"github.com/mashiike/concierge/metadata"
	"github.com/sashabaranov/go-openai"
)

const (
	ProviderName            = "openai"
	emptyContentPlaceholder = "(no content)"
)

type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ModelProvider struct {
	init    sync.Once
	client  OpenAIClient
	initErr error
}

var _ concierge.ModelProvider = (*ModelProvider)(nil)

func New() *ModelProvider {
	return &ModelProvider{}
}

func NewWithClient(client OpenAIClient) *ModelProvider {
	return &ModelProvider{client: client}
}

func (p *ModelProvider) SetClient(client OpenAIClient) {
	p.client = client
}

func (p *ModelProvider) initClient() error {
	p.init.Do(func() {
		if p.client != nil {
			return
		}
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			p.initErr = errors.New("missing OPENAI_API_KEY")
			return
		}
		cfg := openai.DefaultConfig(apiKey)
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			cfg.BaseURL = baseURL
		}
		p.client = openai.NewClientWithConfig(cfg)
	})
	return p.initErr
}

// chatParams are the model_params understood by this provider.
type chatParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	User        string   `json:"user,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
	BaseURL     string   `json:"base_url,omitempty"`
}

func (p *ModelProvider) newClient(params chatParams) (OpenAIClient, error) {
	if params.APIKey != "" || params.BaseURL != "" {
		apiKey := params.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg := openai.DefaultConfig(apiKey)
		if params.BaseURL != "" {
			cfg.BaseURL = params.BaseURL
		}
		return openai.NewClientWithConfig(cfg), nil
	}
	if err := p.initClient(); err != nil {
		return nil, err
	}
	return p.client, nil
}

func (p *ModelProvider) Complete(ctx context.Context, req *concierge.CompletionRequest) (*concierge.CompletionResponse, error) {
	var params chatParams
	if err := jsonutil.Remarshal(req.ModelParams, &params); err != nil {
		return nil, fmt.Errorf("remarshal model params: %w", err)
	}
	client, err := p.newClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	chatReq, err := convertRequest(req, params)
	if err != nil {
		return nil, err
	}
	output, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, wrapError(err)
	}
	return convertResponse(output)
}

// convertRequest builds the chat completion request. Only one tool call per
// reply is requested.
func convertRequest(req *concierge.CompletionRequest, params chatParams) (openai.ChatCompletionRequest, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     req.ModelID,
		MaxTokens: params.MaxTokens,
		Seed:      params.Seed,
		User:      params.User,
	}
	if params.Temperature != nil {
		chatReq.Temperature = *params.Temperature
		// go-openai omits a zero temperature, which the API reads as 1.
		if chatReq.Temperature == 0 {
			chatReq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if params.TopP != nil {
		chatReq.TopP = *params.TopP
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return chatReq, err
		}
		chatReq.Messages = append(chatReq.Messages, converted)
	}
	if len(req.Functions) == 0 {
		return chatReq, nil
	}
	for _, d := range req.Functions {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	switch req.ToolChoice.Mode {
	case concierge.ToolChoiceFunction:
		chatReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.ToolChoice.Function},
		}
	case concierge.ToolChoiceRequired, concierge.ToolChoiceNone, concierge.ToolChoiceAuto:
		chatReq.ToolChoice = string(req.ToolChoice.Mode)
	}
	chatReq.ParallelToolCalls = false
	return chatReq, nil
}

func convertMessage(msg concierge.Message) (openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case concierge.RoleUser:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Name:    msg.Name,
			Content: textContent(msg.Content),
		}, nil
	case concierge.RoleAssistant:
		out := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Name:    msg.Name,
			Content: msg.Content,
		}
		if msg.ToolCall != nil {
			out.ToolCalls = []openai.ToolCall{{
				ID:   msg.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      msg.ToolCall.Name,
					Arguments: msg.ToolCall.Arguments,
				},
			}}
		}
		return out, nil
	case concierge.RoleFunction:
		if msg.ToolCall == nil || msg.ToolCall.ID == "" {
			return openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Name:    msg.Name,
				Content: textContent(msg.Content),
			}, nil
		}
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    textContent(msg.Content),
			ToolCallID: msg.ToolCall.ID,
		}, nil
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: %s", concierge.ErrInvalidMessageRole, msg.Role)
	}
}

// textContent keeps blank user and tool messages on the wire; go-openai
// drops an empty content field.
func textContent(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyContentPlaceholder
	}
	return s
}

func convertResponse(output openai.ChatCompletionResponse) (*concierge.CompletionResponse, error) {
	if len(output.Choices) == 0 {
		return nil, &concierge.RemoteCallError{Provider: ProviderName, Err: errors.New("no choices in response")}
	}
	choice := output.Choices[0]
	msg := concierge.Message{
		Role:    concierge.RoleAssistant,
		Name:    choice.Message.Name,
		Content: choice.Message.Content,
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		msg.ToolCall = &concierge.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	finishReason := convertFinishReason(choice.FinishReason)
	md := metadata.Metadata{}
	md.SetString(metadata.KeyModelID, output.Model)
	md.SetString(metadata.KeyFinishReason, string(finishReason))
	metadata.SetInputTokens(md, int64(output.Usage.PromptTokens))
	metadata.SetOutputTokens(md, int64(output.Usage.CompletionTokens))
	metadata.SetTotalTokens(md, int64(output.Usage.TotalTokens))
	return &concierge.CompletionResponse{
		Message:      msg,
		FinishReason: finishReason,
		Metadata:     md,
	}, nil
}

func convertFinishReason(reason openai.FinishReason) concierge.FinishReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return concierge.FinishReasonToolUse
	case openai.FinishReasonLength:
		return concierge.FinishReasonMaxTokens
	case openai.FinishReasonContentFilter:
		return concierge.FinishReasonContentFiltered
	default:
		return concierge.FinishReasonEndTurn
	}
}

func wrapError(err error) error {
	remoteErr := &concierge.RemoteCallError{Provider: ProviderName, Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		remoteErr.Code = strconv.Itoa(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		remoteErr.Code = strconv.Itoa(reqErr.HTTPStatusCode)
	}
	return remoteErr
}
