package concierge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrArgumentDecode   = errors.New("argument decode failure")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// ArgumentError reports schema violations of decoded arguments.
type ArgumentError struct {
	Function string
	Result   *gojsonschema.Result
}

func (e *ArgumentError) Error() string {
	if e.Result == nil {
		return fmt.Sprintf("function `%s`: %s", e.Function, ErrInvalidArguments)
	}
	issues := make([]string, 0, len(e.Result.Errors()))
	for _, desc := range e.Result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Sprintf("function `%s`: %s: %s", e.Function, ErrInvalidArguments, strings.Join(issues, "; "))
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArguments
}

// DecodeArguments parses the raw argument payload of a tool call.
// The payload must be a JSON object; an empty payload is an empty object.
func DecodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArgumentDecode, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// ValidateArguments checks args against the input schema of fn.
func ValidateArguments(fn Function, args map[string]any) error {
	schema := fn.InputSchema()
	if len(schema) == 0 {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	sl := gojsonschema.NewGoLoader(schema)
	dl := gojsonschema.NewGoLoader(args)
	result, err := gojsonschema.Validate(sl, dl)
	if err != nil {
		return fmt.Errorf("validate arguments of `%s`: %w", fn.Name(), err)
	}
	if !result.Valid() {
		return &ArgumentError{Function: fn.Name(), Result: result}
	}
	return nil
}
