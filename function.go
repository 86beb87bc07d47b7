package concierge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mashiike/concierge/jsonutil"
)

// Function is a locally callable function that can be advertised to the model.
type Function interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Descriptor is the advertised form of a Function.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func Describe(fn Function) Descriptor {
	return Descriptor{
		Name:        fn.Name(),
		Description: fn.Description(),
		Parameters:  fn.InputSchema(),
	}
}

var (
	callIDContextKey       = contextKey("call_id")
	functionNameContextKey = contextKey("function_name")
)

func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDContextKey, id)
}

func CallIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDContextKey).(string)
	return id, ok
}

func WithFunctionName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionNameContextKey, name)
}

func FunctionNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(functionNameContextKey).(string)
	return name, ok
}

// GenerateInputSchema reflects a JSON Schema object from the fields of T.
// Fields without omitempty are required and unknown properties are rejected.
func GenerateInputSchema[T any]() (map[string]any, error) {
	var v T
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	bs, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w (schema=%q)", err, string(bs))
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

type GenericFunction[T any] struct {
	name        string
	description string
	inputSchema map[string]any
	caller      func(context.Context, T) (any, error)
}

func NewFunction[T any](name, desc string, f func(context.Context, T) (any, error)) (*GenericFunction[T], error) {
	inputSchema, err := GenerateInputSchema[T]()
	if err != nil {
		return nil, err
	}
	return &GenericFunction[T]{
		name:        name,
		description: desc,
		inputSchema: inputSchema,
		caller:      f,
	}, nil
}

func (f *GenericFunction[T]) Name() string {
	return f.name
}

func (f *GenericFunction[T]) Description() string {
	return f.description
}

func (f *GenericFunction[T]) InputSchema() map[string]any {
	return f.inputSchema
}

func (f *GenericFunction[T]) Call(ctx context.Context, args map[string]any) (any, error) {
	var value T
	if err := jsonutil.Remarshal(args, &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return f.caller(ctx, value)
}

// FormatResult renders a function result as message content.
func FormatResult(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal function result: %w", err)
	}
	return string(bs), nil
}
