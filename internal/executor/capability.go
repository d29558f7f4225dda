package executor

import (
	"context"
	"sort"

	"github.com/vinayprograms/agentkit/llm"
)

// Injected argument names.
const (
	ArgSessionID = "session_id"
	ArgUserID    = "user_id"
)

// RequiredContext declares which caller context values a capability needs.
// The loop injects them as session_id / user_id arguments.
type RequiredContext struct {
	Session bool
	User    bool
}

// Capability is a named, schema-described operation exposed to the
// reasoning engine.
type Capability interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// RequiredContext reports the context values Execute expects.
	RequiredContext() RequiredContext
	// Execute runs the capability. The result is serialized to JSON (strings
	// are passed through) before being fed back to the engine.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Func adapts a function into a Capability.
type Func struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]interface{}
	Requires        RequiredContext
	Fn              func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

func (f *Func) Name() string                     { return f.ToolName }
func (f *Func) Description() string              { return f.ToolDescription }
func (f *Func) RequiredContext() RequiredContext { return f.Requires }

func (f *Func) Parameters() map[string]interface{} {
	if f.Schema == nil {
		return ObjectSchema(nil)
	}
	return f.Schema
}

func (f *Func) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f.Fn(ctx, args)
}

// ObjectSchema builds a JSON-schema object with the given properties and
// required names.
func ObjectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	if props == nil {
		props = map[string]interface{}{}
	}
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Registry holds capabilities by name.
type Registry struct {
	caps map[string]Capability
}

// NewRegistry creates a registry holding caps.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{caps: make(map[string]Capability)}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// Register adds a capability, replacing any with the same name.
func (r *Registry) Register(c Capability) {
	r.caps[c.Name()] = c
}

// Get returns a capability by name, or nil if not found.
func (r *Registry) Get(name string) Capability {
	return r.caps[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.caps[name]
	return ok
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caps))
	for n := range r.caps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns LLM-facing definitions for the allowed capabilities,
// in allow-list order. Names not in the registry are skipped.
func (r *Registry) Definitions(allowed []string) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(allowed))
	seen := make(map[string]bool)
	for _, name := range allowed {
		c := r.caps[name]
		if c == nil || seen[name] {
			continue
		}
		seen[name] = true
		defs = append(defs, llm.ToolDef{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  c.Parameters(),
		})
	}
	return defs
}
