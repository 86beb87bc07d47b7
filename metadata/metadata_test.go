package metadata

import (
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	m := Metadata{}

	// Test SetString and GetString
	m.SetString("key1", "value1")
	require.Equal(t, "value1", m.GetString("key1"))

	// Test SetInt64 and GetInt64
	m.SetInt64("key2", 12345)
	value, ok := m.GetInt64("key2")
	require.True(t, ok)
	require.Equal(t, int64(12345), value)

	// Test SetFloat64 and GetFloat64
	m.SetFloat64("key3", 123.45)
	valueFloat, ok := m.GetFloat64("key3")
	require.True(t, ok)
	require.Equal(t, 123.45, valueFloat)

	// Test SetBool and GetBool
	m.SetBool("key4", true)
	valueBool, ok := m.GetBool("key4")
	require.True(t, ok)
	require.True(t, valueBool)

	// Test GetString for different types
	require.Equal(t, "12345", m.GetString("key2"))
	require.Equal(t, "123.45", m.GetString("key3"))
	require.Equal(t, "true", m.GetString("key4"))

	// Test Del and Has
	m.Del("key1")
	require.False(t, m.Has("key1"))

	// Test Keys
	require.Equal(t, []string{"Key2", "Key3", "Key4"}, m.Keys())

	// Test Clone
	clone := m.Clone()
	require.Equal(t, len(m), len(clone))
	for key, value := range m {
		require.Equal(t, value, clone[key])
	}
}

func TestMerge(t *testing.T) {
	m1 := Metadata{
		"Key1": "Value1",
		"Key2": 42,
	}
	m2 := Metadata{
		"Key2": 100,
		"Key3": true,
	}

	expected := Metadata{
		"Key1": "Value1",
		"Key2": 100,
		"Key3": true,
	}

	result := m1.Merge(m2)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("expected %v, got %v", expected, result)
	}
	require.Equal(t, 42, m1["Key2"])
}

func TestAddUsage(t *testing.T) {
	m := Metadata{}
	first := Metadata{}
	SetInputTokens(first, 10)
	SetOutputTokens(first, 5)
	SetTotalTokens(first, 15)
	first.SetString(KeyModelID, "gpt-3.5-turbo-1106")
	second := Metadata{}
	SetInputTokens(second, 20)
	SetOutputTokens(second, 1)
	SetTotalTokens(second, 21)

	AddUsage(m, first)
	AddUsage(m, second)

	total, ok := GetTotalTokens(m)
	require.True(t, ok)
	require.Equal(t, int64(36), total)
	input, ok := GetInputTokens(m)
	require.True(t, ok)
	require.Equal(t, int64(30), input)
	output, ok := GetOutputTokens(m)
	require.True(t, ok)
	require.Equal(t, int64(6), output)
	require.Equal(t, "gpt-3.5-turbo-1106", m.GetString(KeyModelID))
}

func TestWriteHeader(t *testing.T) {
	m := Metadata{}
	SetFunctionName(m, "answer_user_query")
	SetAutoReplies(m, 1)
	SetElapsed(m, 1500*time.Millisecond)

	h := http.Header{}
	m.WriteHeader(h, "Concierge-")

	require.Equal(t, "answer_user_query", h.Get("Concierge-Function-Name"))
	require.Equal(t, "1", h.Get("Concierge-Auto-Replies"))
	require.Equal(t, "1500", h.Get("Concierge-Elapsed-Ms"))
}
