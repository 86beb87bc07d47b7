package concierge_test

import (
	"context"
	"testing"
	"time"

	"github.com/Songmu/flextime"
	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/cleaning"
	"github.com/mashiike/concierge/metadata"
	"github.com/stretchr/testify/require"
)

func TestConversationCeiling(t *testing.T) {
	for _, maxReplies := range []int{0, 1, 3} {
		provider := &scriptedProvider{
			replies: []concierge.Message{textReply("Let me check that for you.")},
		}
		conv, err := concierge.NewConversation(provider, newCleaningRegistry(t),
			concierge.WithMaxConsecutiveAutoReply(maxReplies),
		)
		require.NoError(t, err)
		answer, err := conv.Run(context.Background(), "Do you clean windows?")
		require.NoError(t, err)
		require.Equal(t, maxReplies+1, provider.calls(), "max=%d", maxReplies)
		require.Equal(t, maxReplies+1, answer.Transcript.CountRole(concierge.RoleAssistant))
		require.LessOrEqual(t, len(answer.Transcript), 2*maxReplies+2, "max=%d", maxReplies)
		require.False(t, answer.Terminated)
		require.Equal(t, "Let me check that for you.", answer.Value)
		replies, ok := metadata.GetAutoReplies(answer.Metadata)
		require.True(t, ok)
		require.EqualValues(t, maxReplies, replies)
		total, ok := metadata.GetTotalTokens(answer.Metadata)
		require.True(t, ok)
		require.EqualValues(t, 12*(maxReplies+1), total)
	}
}

func TestConversationStateString(t *testing.T) {
	require.Equal(t, []string{
		"awaiting_assistant_reply",
		"awaiting_proxy_reply",
		"terminated",
	}, concierge.ConversationStateStrings())
	for _, s := range concierge.ConversationStateValues() {
		parsed, err := concierge.ConversationStateString(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := concierge.ConversationStateString("waiting")
	require.Error(t, err)
	require.Equal(t, "ConversationState(9)", concierge.ConversationState(9).String())
}

func TestConversationFunctionThenTerminate(t *testing.T) {
	provider := &scriptedProvider{
		replies: []concierge.Message{
			toolCallReply(cleaning.FunctionAvailabilityAndPrices, `{"content":"general cleaning"}`),
			textReply("Next available slot on 2025-01-01 00:00, and price is $100 for 3 hours.\nTERMINATE\n"),
		},
	}
	var transitions []string
	conv, err := concierge.NewConversation(provider, newCleaningRegistry(t),
		concierge.WithMaxConsecutiveAutoReply(5),
		concierge.WithStateHook(func(from, to concierge.ConversationState, _ concierge.Message) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	require.NoError(t, err)
	answer, err := conv.Answer(context.Background(), "general cleaning")
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls())
	require.True(t, answer.Terminated)
	require.Equal(t, "Next available slot on 2025-01-01 00:00, and price is $100 for 3 hours.", answer.Value)
	require.Equal(t, cleaning.FunctionAvailabilityAndPrices, answer.Function)

	roles := make([]string, 0, len(answer.Transcript))
	for _, msg := range answer.Transcript {
		roles = append(roles, msg.Role)
	}
	require.Equal(t, []string{
		concierge.RoleUser,
		concierge.RoleAssistant,
		concierge.RoleFunction,
		concierge.RoleAssistant,
	}, roles)
	fnMsg := answer.Transcript[2]
	require.Equal(t, concierge.DefaultProxyName, fnMsg.Name)
	require.Equal(t, "Next available slot on 2025-01-01 00:00, and price is $100 for 3 hours", fnMsg.Content)
	require.Equal(t, concierge.DefaultAssistantName, answer.Transcript[1].Name)

	second := provider.requests[1]
	require.Len(t, second.Messages, 3)
	require.Equal(t, concierge.ToolChoice{Mode: concierge.ToolChoiceAuto}, second.ToolChoice)

	require.Equal(t, []string{
		"awaiting_assistant_reply>awaiting_proxy_reply",
		"awaiting_proxy_reply>awaiting_assistant_reply",
		"awaiting_assistant_reply>terminated",
	}, transitions)
}

func TestConversationSentinelFirstReply(t *testing.T) {
	provider := &scriptedProvider{
		replies: []concierge.Message{textReply("We're connecting you with a human agent DONE")},
	}
	conv, err := concierge.NewConversation(provider, nil,
		concierge.WithTerminationSentinel("DONE"),
		concierge.WithMaxConsecutiveAutoReply(3),
	)
	require.NoError(t, err)
	answer, err := conv.Run(context.Background(), "post renovation cleaning")
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls())
	require.True(t, answer.Terminated)
	require.Equal(t, "We're connecting you with a human agent", answer.Value)
	require.Equal(t, concierge.ToolChoice{Mode: concierge.ToolChoiceNone}, provider.requests[0].ToolChoice)
}

func TestConversationSentinelInsideTextIsIgnored(t *testing.T) {
	provider := &scriptedProvider{
		replies: []concierge.Message{textReply("Say TERMINATE to stop, or ask more.")},
	}
	conv, err := concierge.NewConversation(provider, nil)
	require.NoError(t, err)
	answer, err := conv.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.False(t, answer.Terminated)
	require.Equal(t, 2, provider.calls())
}

func TestConversationAutoReply(t *testing.T) {
	provider := &scriptedProvider{
		replies: []concierge.Message{textReply("Which service?")},
	}
	conv, err := concierge.NewConversation(provider, newCleaningRegistry(t),
		concierge.WithAutoReply("Continue."),
		concierge.WithAgentNames("concierge", "customer"),
	)
	require.NoError(t, err)
	answer, err := conv.Run(context.Background(), "I need cleaning")
	require.NoError(t, err)
	require.Len(t, answer.Transcript, 4)
	proxy := answer.Transcript[2]
	require.Equal(t, concierge.RoleUser, proxy.Role)
	require.Equal(t, "customer", proxy.Name)
	require.Equal(t, "Continue.", proxy.Content)
	require.Equal(t, "concierge", answer.Transcript[1].Name)
	require.Equal(t, "customer", answer.Transcript[0].Name)
}

func TestConversationErrors(t *testing.T) {
	provider := &scriptedProvider{
		replies: []concierge.Message{toolCallReply("book_cleaning", `{"content":"x"}`)},
	}
	conv, err := concierge.NewConversation(provider, newCleaningRegistry(t))
	require.NoError(t, err)
	_, err = conv.Run(context.Background(), "book a cleaning")
	require.ErrorIs(t, err, concierge.ErrFunctionNotFound)
	require.Equal(t, 1, provider.calls())

	provider = &scriptedProvider{err: &concierge.RemoteCallError{Provider: "bedrock", Err: context.DeadlineExceeded}}
	conv, err = concierge.NewConversation(provider, newCleaningRegistry(t))
	require.NoError(t, err)
	_, err = conv.Run(context.Background(), "general cleaning")
	require.ErrorIs(t, err, concierge.ErrRemoteCall)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conv.Run(ctx, "general cleaning")
	require.ErrorIs(t, err, context.Canceled)

	_, err = concierge.NewConversation(nil, nil)
	require.ErrorIs(t, err, concierge.ErrProviderMissing)
}

func TestConversationTimestamps(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := flextime.Fix(now)
	defer restore()

	provider := &scriptedProvider{
		replies: []concierge.Message{textReply("done TERMINATE")},
	}
	conv, err := concierge.NewConversation(provider, nil)
	require.NoError(t, err)
	answer, err := conv.Run(context.Background(), "hello")
	require.NoError(t, err)
	for _, msg := range answer.Transcript {
		require.True(t, now.Equal(msg.CreatedAt))
	}
}
