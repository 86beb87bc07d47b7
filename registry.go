package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry holds the functions that can be advertised to the model, in
// registration order.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
	order     []string
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]Function),
	}
}

// Errors returned by the registry.
var (
	ErrFunctionNameEmpty         = errors.New("function name is empty")
	ErrFunctionAlreadyRegistered = errors.New("function already registered")
	ErrFunctionNotFound          = errors.New("function not found")
)

// Register registers a new function. Registering a name twice is an error;
// use Replace to overwrite.
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return errors.New("function is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := fn.Name()
	if name == "" {
		return ErrFunctionNameEmpty
	}
	if _, ok := r.functions[name]; ok {
		return fmt.Errorf("function `%s`: %w", name, ErrFunctionAlreadyRegistered)
	}
	r.functions[name] = fn
	r.order = append(r.order, name)
	return nil
}

// Replace registers fn, overwriting any function with the same name.
// An overwritten function keeps its position in the descriptor order.
func (r *Registry) Replace(fn Function) (bool, error) {
	if fn == nil {
		return false, errors.New("function is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := fn.Name()
	if name == "" {
		return false, ErrFunctionNameEmpty
	}
	_, replaced := r.functions[name]
	r.functions[name] = fn
	if !replaced {
		r.order = append(r.order, name)
	}
	return replaced, nil
}

// Resolve returns the function registered under name.
func (r *Registry) Resolve(name string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	if !ok {
		return nil, fmt.Errorf("function `%s`: %w", name, ErrFunctionNotFound)
	}
	return fn, nil
}

// Exists returns true if the function is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// DescribeAll returns the descriptors of all functions in registration order.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, Describe(r.functions[name]))
	}
	return descs
}

// Subset returns a new registry holding only the named functions, in the
// given order. An empty list selects every function.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	sub := NewRegistry()
	for _, name := range names {
		fn, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		if err := sub.Register(fn); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Invoke executes a tool call: the function must be registered and the
// arguments must decode and satisfy the function's input schema.
func (r *Registry) Invoke(ctx context.Context, call ToolCall) (any, error) {
	fn, err := r.Resolve(call.Name)
	if err != nil {
		return nil, err
	}
	args, err := DecodeArguments(call.Arguments)
	if err != nil {
		return nil, fmt.Errorf("function `%s`: %w", call.Name, err)
	}
	if err := ValidateArguments(fn, args); err != nil {
		return nil, err
	}
	ctx = WithFunctionName(ctx, call.Name)
	if call.ID != "" {
		ctx = WithCallID(ctx, call.ID)
	}
	slog.DebugContext(ctx, "invoke function", "name", call.Name, "call_id", call.ID, "args", args)
	result, err := fn.Call(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("call `%s`: %w", call.Name, err)
	}
	return result, nil
}
