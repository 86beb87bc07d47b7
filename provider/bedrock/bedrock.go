package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/metadata"
)

const ProviderName = "bedrock"

// Bedrock rejects blank text blocks.
const emptyContentPlaceholder = "(no content)"

type BedrockAPIClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type ModelProvider struct {
	init    sync.Once
	awsCfg  *aws.Config
	client  BedrockAPIClient
	initErr error
}

var _ concierge.ModelProvider = (*ModelProvider)(nil)

func New() *ModelProvider {
	return &ModelProvider{}
}

func NewWithConfig(awsCfg aws.Config) *ModelProvider {
	return &ModelProvider{awsCfg: &awsCfg}
}

func NewWithClient(client BedrockAPIClient) *ModelProvider {
	return &ModelProvider{client: client}
}

func (p *ModelProvider) SetClient(client BedrockAPIClient) {
	p.client = client
}

func (p *ModelProvider) initClient(ctx context.Context) error {
	p.init.Do(func() {
		if p.client != nil {
			return
		}
		if p.awsCfg == nil {
			awsCfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				p.initErr = err
				return
			}
			p.awsCfg = &awsCfg
		}
		p.client = bedrockruntime.NewFromConfig(*p.awsCfg)
	})
	return p.initErr
}

// model params that belong to other providers.
var ignoredParams = []string{"seed", "api_key", "base_url", "user"}

func (p *ModelProvider) Complete(ctx context.Context, req *concierge.CompletionRequest) (*concierge.CompletionResponse, error) {
	if err := p.initClient(ctx); err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	input, names, err := convertRequest(req)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "converse", "model_id", req.ModelID, "messages", len(input.Messages))
	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, wrapError(err)
	}
	return convertResponse(output, names)
}

// convertRequest builds the Converse input. The returned map resolves
// normalized tool names back to function names.
func convertRequest(req *concierge.CompletionRequest) (*bedrockruntime.ConverseInput, map[string]string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.ModelID),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{
				Value: req.System,
			},
		}
	}
	for _, msg := range req.Messages {
		tMsg, err := convertMessage(msg)
		if err != nil {
			return nil, nil, err
		}
		if n := len(input.Messages); n > 0 && input.Messages[n-1].Role == tMsg.Role {
			input.Messages[n-1].Content = append(input.Messages[n-1].Content, tMsg.Content...)
			continue
		}
		input.Messages = append(input.Messages, tMsg)
	}
	params := make(map[string]any, len(req.ModelParams))
	maps.Copy(params, req.ModelParams)
	for _, k := range ignoredParams {
		delete(params, k)
	}
	if maxTokens, ok := params["max_tokens"]; ok {
		if input.InferenceConfig == nil {
			input.InferenceConfig = &types.InferenceConfiguration{}
		}
		input.InferenceConfig.MaxTokens = aws.Int32(toNumber[int32](maxTokens))
		delete(params, "max_tokens")
	}
	if temperature, ok := params["temperature"]; ok {
		if input.InferenceConfig == nil {
			input.InferenceConfig = &types.InferenceConfiguration{}
		}
		input.InferenceConfig.Temperature = aws.Float32(toNumber[float32](temperature))
		delete(params, "temperature")
	}
	if topP, ok := params["top_p"]; ok {
		if input.InferenceConfig == nil {
			input.InferenceConfig = &types.InferenceConfiguration{}
		}
		input.InferenceConfig.TopP = aws.Float32(toNumber[float32](topP))
		delete(params, "top_p")
	}
	if stopWords, ok := params["stop_words"]; ok {
		if input.InferenceConfig == nil {
			input.InferenceConfig = &types.InferenceConfiguration{}
		}
		input.InferenceConfig.StopSequences = toStrings(stopWords)
		delete(params, "stop_words")
	}
	if len(params) > 0 {
		input.AdditionalModelRequestFields = document.NewLazyDocument(params)
	}
	if len(req.Metadata) > 0 {
		input.RequestMetadata = make(map[string]string)
		for _, k := range req.Metadata.Keys() {
			input.RequestMetadata[k] = req.Metadata.GetString(k)
		}
	}
	names := make(map[string]string, len(req.Functions))
	if len(req.Functions) == 0 || req.ToolChoice.Mode == concierge.ToolChoiceNone {
		return input, names, nil
	}
	input.ToolConfig = &types.ToolConfiguration{
		Tools: make([]types.Tool, 0, len(req.Functions)),
	}
	for _, d := range req.Functions {
		name := NormalizeToolName(d.Name)
		names[name] = d.Name
		input.ToolConfig.Tools = append(input.ToolConfig.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(name),
				Description: aws.String(d.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(d.Parameters),
				},
			},
		})
	}
	switch req.ToolChoice.Mode {
	case concierge.ToolChoiceFunction:
		input.ToolConfig.ToolChoice = &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(NormalizeToolName(req.ToolChoice.Function))},
		}
	case concierge.ToolChoiceRequired:
		input.ToolConfig.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
	default:
		input.ToolConfig.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
	}
	return input, names, nil
}

func convertMessage(msg concierge.Message) (types.Message, error) {
	switch msg.Role {
	case concierge.RoleUser:
		return types.Message{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{textBlock(msg.Content)},
		}, nil
	case concierge.RoleAssistant:
		tMsg := types.Message{Role: types.ConversationRoleAssistant}
		if strings.TrimSpace(msg.Content) != "" || msg.ToolCall == nil {
			tMsg.Content = append(tMsg.Content, textBlock(msg.Content))
		}
		if msg.ToolCall != nil {
			var input any = map[string]any{}
			if strings.TrimSpace(msg.ToolCall.Arguments) != "" {
				if err := json.Unmarshal([]byte(msg.ToolCall.Arguments), &input); err != nil {
					return tMsg, fmt.Errorf("%w: %w", concierge.ErrArgumentDecode, err)
				}
			}
			tMsg.Content = append(tMsg.Content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(msg.ToolCall.ID),
					Name:      aws.String(NormalizeToolName(msg.ToolCall.Name)),
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		return tMsg, nil
	case concierge.RoleFunction:
		if msg.ToolCall == nil || msg.ToolCall.ID == "" {
			return types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{textBlock(msg.Content)},
			}, nil
		}
		return types.Message{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				newToolResult(msg.ToolCall.ID, msg.Content),
			},
		}, nil
	default:
		return types.Message{}, fmt.Errorf("%w: %s", concierge.ErrInvalidMessageRole, msg.Role)
	}
}

func textBlock(text string) types.ContentBlock {
	if strings.TrimSpace(text) == "" {
		text = emptyContentPlaceholder
	}
	return &types.ContentBlockMemberText{Value: text}
}

func newToolResult(toolUseID string, content string) types.ContentBlock {
	if strings.TrimSpace(content) == "" {
		content = emptyContentPlaceholder
	}
	return &types.ContentBlockMemberToolResult{
		Value: types.ToolResultBlock{
			ToolUseId: aws.String(toolUseID),
			Status:    types.ToolResultStatusSuccess,
			Content: []types.ToolResultContentBlock{
				&types.ToolResultContentBlockMemberText{
					Value: content,
				},
			},
		},
	}
}

var (
	toolNameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

func NormalizeToolName(input string) string {
	normalized := toolNameRe.ReplaceAllString(input, "_")
	normalized = strings.Trim(normalized, "_")
	if len(normalized) > 64 {
		normalized = normalized[:64]
	}
	if normalized == "" {
		return "default_tool"
	}
	return normalized
}

// convertResponse takes the text of the reply and its first tool use.
func convertResponse(output *bedrockruntime.ConverseOutput, names map[string]string) (*concierge.CompletionResponse, error) {
	member, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &concierge.RemoteCallError{Provider: ProviderName, Err: fmt.Errorf("unexpected output type %T", output.Output)}
	}
	msg := concierge.Message{Role: concierge.RoleAssistant}
	var texts []string
	for _, cb := range member.Value.Content {
		switch v := cb.(type) {
		case *types.ContentBlockMemberText:
			texts = append(texts, v.Value)
		case *types.ContentBlockMemberToolUse:
			if msg.ToolCall != nil {
				continue
			}
			call, err := convertToolUse(v.Value, names)
			if err != nil {
				return nil, err
			}
			msg.ToolCall = call
		}
	}
	msg.Content = strings.Join(texts, "")
	md := metadata.Metadata{}
	setToMetadata(output, md)
	finishReason := convertStopReason(output.StopReason)
	md.SetString(metadata.KeyFinishReason, string(finishReason))
	return &concierge.CompletionResponse{
		Message:      msg,
		FinishReason: finishReason,
		Metadata:     md,
	}, nil
}

func convertToolUse(v types.ToolUseBlock, names map[string]string) (*concierge.ToolCall, error) {
	name := aws.ToString(v.Name)
	if original, ok := names[name]; ok {
		name = original
	}
	arguments := "{}"
	if v.Input != nil {
		bs, err := v.Input.MarshalSmithyDocument()
		if err != nil {
			return nil, fmt.Errorf("marshal tool input: %w", err)
		}
		arguments = string(bs)
	}
	return &concierge.ToolCall{
		ID:        aws.ToString(v.ToolUseId),
		Name:      name,
		Arguments: arguments,
	}, nil
}

func convertStopReason(reason types.StopReason) concierge.FinishReason {
	switch reason {
	case types.StopReasonToolUse:
		return concierge.FinishReasonToolUse
	case types.StopReasonMaxTokens:
		return concierge.FinishReasonMaxTokens
	case types.StopReasonStopSequence:
		return concierge.FinishReasonStopSequence
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return concierge.FinishReasonContentFiltered
	default:
		return concierge.FinishReasonEndTurn
	}
}

func setToMetadata(v *bedrockruntime.ConverseOutput, m metadata.Metadata) {
	if v.Metrics != nil && v.Metrics.LatencyMs != nil {
		m.SetInt64("Metrics-Latency-Ms", *v.Metrics.LatencyMs)
	}
	if v.Usage != nil {
		if v.Usage.InputTokens != nil {
			metadata.SetInputTokens(m, int64(*v.Usage.InputTokens))
		}
		if v.Usage.OutputTokens != nil {
			metadata.SetOutputTokens(m, int64(*v.Usage.OutputTokens))
		}
		if v.Usage.TotalTokens != nil {
			metadata.SetTotalTokens(m, int64(*v.Usage.TotalTokens))
		}
	}
}

func wrapError(err error) error {
	remoteErr := &concierge.RemoteCallError{Provider: ProviderName, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		remoteErr.Code = apiErr.ErrorCode()
	}
	return remoteErr
}
