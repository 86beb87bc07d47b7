package jsonutil_test

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/mashiike/concierge/jsonutil"
	"github.com/stretchr/testify/require"
)

func TestSampleGenerator(t *testing.T) {
	seed := [32]byte{0}
	gen := jsonutil.NewSampleGenerator(rand.New(rand.NewChaCha8(seed)))
	schema := `{
		"type": "object",
		"properties": {
			"content": { "type": "string", "examples": ["general cleaning"] },
			"hours": { "type": "integer", "default": 3 },
			"service": { "type": "string", "enum": ["general"] },
			"price": { "type": "number" },
			"is_active": { "type": "boolean" },
			"tags": {
				"type": "array",
				"items": { "type": "string", "example": "tag-example" }
			}
		}
	}`

	var schemaMap map[string]any
	require.NoError(t, json.Unmarshal([]byte(schema), &schemaMap))

	data, ok := gen.Generate(schemaMap).(map[string]any)
	require.True(t, ok)
	require.Equal(t, "general cleaning", data["content"])
	require.EqualValues(t, 3, data["hours"])
	require.Equal(t, "general", data["service"])
	require.IsType(t, float64(0), data["price"])
	require.IsType(t, true, data["is_active"])
	require.Equal(t, []any{"tag-example"}, data["tags"])
}

func TestRemarshal(t *testing.T) {
	type input struct {
		Content string `json:"content"`
	}
	var v input
	err := jsonutil.Remarshal(map[string]any{"content": "general cleaning"}, &v)
	require.NoError(t, err)
	require.Equal(t, "general cleaning", v.Content)

	err = jsonutil.Remarshal(map[string]any{"content": 1}, &v)
	require.Error(t, err)
}

func TestMakeVM(t *testing.T) {
	t.Setenv("CONCIERGE_TEST_MODEL", "gpt-4o-mini")
	vm := jsonutil.MakeVM()
	out, err := vm.EvaluateAnonymousSnippet("test.jsonnet", `{
		model: std.native('env')('CONCIERGE_TEST_MODEL', 'fallback'),
		missing: std.native('env')('CONCIERGE_TEST_UNSET', 'fallback'),
	}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"model":"gpt-4o-mini","missing":"fallback"}`, out)

	_, err = vm.EvaluateAnonymousSnippet("test.jsonnet", `std.native('mustEnv')('CONCIERGE_TEST_UNSET')`)
	require.Error(t, err)
}
