package metadata

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/textproto"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Metadata carries per-answer facts (token usage, selected function, timing)
// keyed by canonical MIME header keys so it can be copied to HTTP headers.
type Metadata map[string]any

const (
	KeyFunctionName  = "Function-Name"
	KeyFinishReason  = "Finish-Reason"
	KeyModelID       = "Model-Id"
	KeyAutoReplies   = "Auto-Replies"
	KeyElapsedMs     = "Elapsed-Ms"
	KeyInputTokens   = "Usage-Input-Tokens"
	KeyOutputTokens  = "Usage-Output-Tokens"
	KeyTotalTokens   = "Usage-Total-Tokens"
	KeyRemoteErrCode = "Remote-Error-Code"
)

func key(k string) string {
	return textproto.CanonicalMIMEHeaderKey(k)
}

func (m Metadata) Get(k string) any {
	return m[key(k)]
}

func (m Metadata) Del(k string) {
	delete(m, key(k))
}

func (m Metadata) Has(k string) bool {
	_, ok := m[key(k)]
	return ok
}

func (m Metadata) Set(k string, value any) {
	switch v := value.(type) {
	case string:
		m.SetString(k, v)
	case int:
		m.SetInt64(k, int64(v))
	case int64:
		m.SetInt64(k, v)
	case float64:
		m.SetFloat64(k, v)
	case bool:
		m.SetBool(k, v)
	case []string:
		m.SetStrings(k, v)
	default:
		slog.Warn("unsupported metadata value type", "key", k, "type", fmt.Sprintf("%T", value))
	}
}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, value := range m {
		clone[k] = value
	}
	return clone
}

func (m Metadata) Merge(other Metadata) Metadata {
	merged := m.Clone()
	merged.MergeInPlace(other)
	return merged
}

func (m Metadata) MergeInPlace(other Metadata) {
	for k, value := range other {
		m[k] = value
	}
}

func (m Metadata) GetInt64(k string) (int64, bool) {
	value, ok := m[key(k)].(int64)
	return value, ok
}

func (m Metadata) SetInt64(k string, value int64) {
	m[key(k)] = value
}

func (m Metadata) GetFloat64(k string) (float64, bool) {
	value, ok := m[key(k)].(float64)
	return value, ok
}

func (m Metadata) SetFloat64(k string, value float64) {
	m[key(k)] = value
}

func (m Metadata) GetBool(k string) (bool, bool) {
	value, ok := m[key(k)].(bool)
	return value, ok
}

func (m Metadata) SetBool(k string, value bool) {
	m[key(k)] = value
}

func (m Metadata) SetString(k string, value string) {
	m[key(k)] = []string{value}
}

func (m Metadata) SetStrings(k string, values []string) {
	m[key(k)] = values
}

func (m Metadata) GetStrings(k string) []string {
	switch v := m[key(k)].(type) {
	case []string:
		return v
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(v)}
	default:
		return []string{}
	}
}

func (m Metadata) GetString(k string) string {
	strs := m.GetStrings(k)
	if len(strs) > 0 {
		return strs[0]
	}
	return ""
}

func (m Metadata) String() string {
	var sb strings.Builder
	for _, k := range m.Keys() {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(m.GetStrings(k), ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteHeader copies every entry to h, each key prefixed with prefix.
func (m Metadata) WriteHeader(h http.Header, prefix string) {
	for _, k := range m.Keys() {
		for _, v := range m.GetStrings(k) {
			h.Add(prefix+k, v)
		}
	}
}

func SetFunctionName(m Metadata, name string) {
	m.SetString(KeyFunctionName, name)
}

func GetFunctionName(m Metadata) string {
	return m.GetString(KeyFunctionName)
}

func SetElapsed(m Metadata, d time.Duration) {
	m.SetInt64(KeyElapsedMs, d.Milliseconds())
}

func SetAutoReplies(m Metadata, n int64) {
	m.SetInt64(KeyAutoReplies, n)
}

func GetAutoReplies(m Metadata) (int64, bool) {
	return m.GetInt64(KeyAutoReplies)
}

func SetInputTokens(m Metadata, tokens int64) {
	m.SetInt64(KeyInputTokens, tokens)
}

func SetOutputTokens(m Metadata, tokens int64) {
	m.SetInt64(KeyOutputTokens, tokens)
}

func SetTotalTokens(m Metadata, tokens int64) {
	m.SetInt64(KeyTotalTokens, tokens)
}

func GetInputTokens(m Metadata) (int64, bool) {
	return m.GetInt64(KeyInputTokens)
}

func GetOutputTokens(m Metadata) (int64, bool) {
	return m.GetInt64(KeyOutputTokens)
}

func GetTotalTokens(m Metadata) (int64, bool) {
	return m.GetInt64(KeyTotalTokens)
}

// AddUsage accumulates the token counters of from into m and copies every
// other entry over.
func AddUsage(m Metadata, from Metadata) {
	for k, value := range from {
		switch k {
		case key(KeyInputTokens), key(KeyOutputTokens), key(KeyTotalTokens):
			n, _ := value.(int64)
			current, _ := m.GetInt64(k)
			m.SetInt64(k, current+n)
		default:
			m[k] = value
		}
	}
}
