// Package tools defines the tool catalog exposed to agents: names,
// descriptions, JSON input schemas, argument validation and dispatch onto the
// Search Console access service.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	ErrUnknownTool       = errors.New("unknown tool")
	ErrMissingArguments  = errors.New("arguments are required")
	ErrDuplicateToolName = errors.New("duplicate tool name")
)

// Handler executes a tool with raw JSON arguments and returns a value to be
// rendered as JSON.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema *jsonschema.Schema
	ReadOnly    bool
	// NoArguments tools accept an absent arguments object.
	NoArguments bool
	Handler     Handler
}

type Registry struct {
	tools  []Tool
	byName map[string]int
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return nil, fmt.Errorf("tool %q: name and handler are required", t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToolName, t.Name)
		}
		r.byName[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Call validates and runs one invocation and returns the result as indented
// JSON text.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if isEmptyArguments(args) && !t.NoArguments {
		return "", ErrMissingArguments
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		return "", err
	}
	return FormatResult(result)
}

// FormatResult renders v as two-space indented JSON.
func FormatResult(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
