package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type ToolName string

// ToolSpec is what the model sees of a tool.
type ToolSpec struct {
	Name        ToolName
	Description string
	Parameters  map[string]any
}

// Tool is a typed handler bound at construction. Call decodes the raw model
// arguments itself.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

type typedTool[In any] struct {
	spec ToolSpec
	fn   func(ctx context.Context, in In) (any, error)
}

// NewTool binds fn under name, with a parameter schema reflected from In.
func NewTool[In any](name ToolName, description string, fn func(ctx context.Context, in In) (any, error)) (Tool, error) {
	params, err := SchemaFor[In]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return &typedTool[In]{spec: ToolSpec{Name: name, Description: description, Parameters: params}, fn: fn}, nil
}

func (t *typedTool[In]) Spec() ToolSpec { return t.spec }

func (t *typedTool[In]) Call(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[In](args)
	if err != nil {
		return nil, err
	}
	return t.fn(ctx, in)
}

func decodeArgs[T any](args json.RawMessage) (T, error) {
	var v T
	raw := bytes.TrimSpace(args)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("invalid arguments: %w", err)
	}
	return v, nil
}

// SchemaFor reflects T into an inline JSON schema object.
func SchemaFor[T any]() (map[string]any, error) {
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var zero T
	s := r.Reflect(&zero)
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
