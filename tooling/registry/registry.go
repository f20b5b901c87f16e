package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Gurpartap/pipeframe/pipeline"
)

var (
	ErrToolUnregistered = errors.New("tool is not registered")
	ErrNilHandler       = errors.New("tool handler is nil")
	ErrToolNameEmpty    = errors.New("tool name is empty")
)

// Definition declares one registered tool: its argument schema and handler.
// Arguments are restricted to primitive values; composite payloads must be
// serialized to a string by the caller and parsed inside the handler.
type Definition struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

type entry struct {
	definition Definition
	schema     *gojsonschema.Schema
}

// Registry stores tools by name and enforces the argument contract before
// any handler runs: primitive-only values, then JSON-schema validation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

func New() *Registry {
	return &Registry{tools: map[string]*entry{}}
}

func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return ErrToolNameEmpty
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, def.Name)
	}

	var schema *gojsonschema.Schema
	if def.Schema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema))
		if err != nil {
			return fmt.Errorf("tool %q: compile schema: %w", def.Name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = &entry{
		definition: def,
		schema:     schema,
	}
	return nil
}

// Tool returns the named tool bound to its validation contract.
func (r *Registry) Tool(name string) (pipeline.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registered, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return &boundTool{
		name:  name,
		entry: registered,
	}, true
}

// Tools resolves a set of named tools for binding to a step.
func (r *Registry) Tools(names ...string) (map[string]pipeline.Tool, error) {
	out := make(map[string]pipeline.Tool, len(names))
	for _, name := range names {
		tool, ok := r.Tool(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrToolUnregistered, name)
		}
		out[name] = tool
	}
	return out, nil
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type boundTool struct {
	name  string
	entry *entry
}

func (t *boundTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err := validatePrimitiveArgs(args); err != nil {
		return nil, &pipeline.ToolError{Tool: t.name, Err: err}
	}
	if t.entry.schema != nil {
		result, err := t.entry.schema.Validate(gojsonschema.NewGoLoader(normalizeArgs(args)))
		if err != nil {
			return nil, &pipeline.ToolError{Tool: t.name, Err: err}
		}
		if !result.Valid() {
			return nil, &pipeline.ToolError{
				Tool: t.name,
				Err:  fmt.Errorf("schema violation: %s", formatSchemaErrors(result)),
			}
		}
	}

	value, err := t.entry.definition.Handler(ctx, args)
	if err != nil {
		var toolErr *pipeline.ToolError
		if errors.As(err, &toolErr) {
			return nil, err
		}
		return nil, &pipeline.ToolError{Tool: t.name, Err: err}
	}
	return value, nil
}

// validatePrimitiveArgs rejects composite argument values: the delegated
// executor's calling convention only marshals strings, numbers, and booleans
// reliably.
func validatePrimitiveArgs(args map[string]any) error {
	for key, value := range args {
		switch value.(type) {
		case nil:
			return fmt.Errorf("argument %q is nil", key)
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			continue
		default:
			return fmt.Errorf(
				"argument %q has composite type %T; serialize it to a string",
				key,
				value,
			)
		}
	}
	return nil
}

// normalizeArgs widens integer arguments to float64 so schema "number"
// constraints match Go-native ints the same way they match decoded JSON.
func normalizeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for key, value := range args {
		switch typed := value.(type) {
		case int:
			out[key] = float64(typed)
		case int8:
			out[key] = float64(typed)
		case int16:
			out[key] = float64(typed)
		case int32:
			out[key] = float64(typed)
		case int64:
			out[key] = float64(typed)
		case uint:
			out[key] = float64(typed)
		case uint8:
			out[key] = float64(typed)
		case uint16:
			out[key] = float64(typed)
		case uint32:
			out[key] = float64(typed)
		case uint64:
			out[key] = float64(typed)
		case float32:
			out[key] = float64(typed)
		default:
			out[key] = value
		}
	}
	return out
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	messages := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		messages = append(messages, schemaErr.String())
	}
	return strings.Join(messages, "; ")
}
