package concierge_test

import (
	"testing"

	"github.com/mashiike/concierge"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("CONCIERGE_MODE", "")
	t.Setenv("CONCIERGE_PROVIDER", "")
	t.Setenv("CONCIERGE_MODEL_ID", "")
	cfg, err := concierge.DefaultConfig()
	require.NoError(t, err)
	require.Equal(t, concierge.ModeDirect, cfg.Mode)
	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, "gpt-3.5-turbo-1106", cfg.ModelID)
	require.EqualValues(t, 0, cfg.ModelParams["temperature"])
	require.EqualValues(t, 300, cfg.ModelParams["max_tokens"])
	require.Equal(t, "answer_user_query", cfg.Direct.ForcedFunction)
	require.Equal(t, []string{"answer_user_query"}, cfg.FunctionNames())
	require.NotNil(t, cfg.Agent.MaxConsecutiveAutoReply)
	require.Equal(t, 1, *cfg.Agent.MaxConsecutiveAutoReply)
	require.Equal(t, "TERMINATE", cfg.Agent.TerminationSentinel)
	require.Equal(t, "/get_result", cfg.Server.Path)
	require.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)
}

func TestDefaultConfigAgentMode(t *testing.T) {
	t.Setenv("CONCIERGE_MODE", "agent")
	cfg, err := concierge.DefaultConfig()
	require.NoError(t, err)
	require.Equal(t, concierge.ModeAgent, cfg.Mode)
	require.Equal(t, []string{"get_connect_to_human_agent", "get_availability_pricing_service"}, cfg.FunctionNames())

	opts, err := cfg.Options(nil)
	require.NoError(t, err)
	require.NotEmpty(t, opts)
}

func TestParseConfig(t *testing.T) {
	raw := `{
		mode: 'agent',
		provider: 'bedrock',
		model_id: std.extVar('model_id'),
		agent: {
			system: 'Reply {{ .Sentinel }} when done.',
			max_consecutive_auto_reply: std.extVar('max_replies'),
			termination_sentinel: 'DONE',
		},
		catalog: { extra: true },
	}`
	cfg, err := concierge.ParseConfig("test.jsonnet", raw,
		concierge.WithExtVars(map[string]string{"model_id": "anthropic.claude-3-haiku"}),
		concierge.WithExtCodes(map[string]string{"max_replies": "3"}),
	)
	require.NoError(t, err)
	require.Equal(t, "bedrock", cfg.Provider)
	require.Equal(t, "anthropic.claude-3-haiku", cfg.ModelID)
	require.Equal(t, 3, *cfg.Agent.MaxConsecutiveAutoReply)
	require.Equal(t, "/get_result", cfg.Server.Path)
	require.Equal(t, ":1950", cfg.Server.Addr)

	var section struct {
		Catalog map[string]any `json:"catalog"`
	}
	require.NoError(t, cfg.Decode(&section))
	require.Equal(t, true, section.Catalog["extra"])
}

func TestParseConfigInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "unknown mode", raw: `{ mode: 'chat', provider: 'openai' }`},
		{name: "no provider", raw: `{ mode: 'direct' }`},
		{name: "negative ceiling", raw: `{ provider: 'openai', agent: { max_consecutive_auto_reply: -1 } }`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := concierge.ParseConfig("test.jsonnet", c.raw)
			require.ErrorIs(t, err, concierge.ErrInvalidConfig)
		})
	}
	_, err := concierge.ParseConfig("test.jsonnet", `{ mode: `)
	require.Error(t, err)
}
