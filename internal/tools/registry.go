// Package tools is the table of named operations exposed to tool-calling
// clients. Each entry carries a description and the JSON Schema its
// arguments are validated against before the handler runs.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/p-arndt/codebox/protocol"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Handler runs a tool with arguments already validated against its schema.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type tool struct {
	info    protocol.ToolInfo
	schema  *jsonschema.Schema
	handler Handler
}

type Registry struct {
	tools map[string]*tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*tool)}
}

// Register adds a tool. schema is a JSON Schema document for the arguments
// object.
func (r *Registry) Register(name, description, schema string, h Handler) error {
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schema)))
	if err != nil {
		return fmt.Errorf("tool %s: unmarshal schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", doc); err != nil {
		return fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}
	compiled, err := c.Compile(name + ".json")
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	r.tools[name] = &tool{
		info: protocol.ToolInfo{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(schema),
		},
		schema:  compiled,
		handler: h,
	}
	return nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []protocol.ToolInfo {
	infos := make([]protocol.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, t.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Call validates args and dispatches to the named tool. Missing arguments
// are treated as an empty object.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}

	payload, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := t.schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return t.handler(ctx, args)
}

// decodeArgs unmarshals validated arguments into dst.
func decodeArgs(args json.RawMessage, dst any) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
