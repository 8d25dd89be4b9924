// Package toolbox runs the tool calls a bot asks for. A Registry maps
// function names to Go implementations, and a Pool executes one turn's calls
// concurrently so that every call gets a result for the resumed turn.
package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/botstream/pkg/llm"
)

// ErrorPrefix starts the content of a result for a failed call. Bots that
// only read text recognize it as a failure.
const ErrorPrefix = "ERROR: "

// Func implements a tool. args is the JSON argument object sent by the bot.
type Func func(ctx context.Context, args json.RawMessage) (string, error)

type entry struct {
	tool llm.Tool
	fn   Func
}

// Registry holds the tools offered to a bot.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool llm.Tool, fn Func) error {
	name := tool.Function.Name
	if name == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s has no implementation", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.entries[name] = entry{tool: tool, fn: fn}
	r.order = append(r.order, name)
	return nil
}

// Tools returns the catalogue in registration order, ready for a request's
// tools field.
func (r *Registry) Tools() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Lookup returns the implementation registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e.fn, ok
}

// Call executes one tool call and always returns a result for it. Failures,
// unknown tools and panics are reported in the content with ErrorPrefix.
func (r *Registry) Call(ctx context.Context, call llm.ToolCall) (result llm.ToolResult) {
	fn, ok := r.Lookup(call.Function.Name)
	if !ok {
		return errorResult(call, fmt.Errorf("unknown tool %q", call.Function.Name))
	}

	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	if !gjson.Valid(args) {
		return errorResult(call, fmt.Errorf("invalid arguments for %s: %q", call.Function.Name, args))
	}

	defer func() {
		if p := recover(); p != nil {
			result = errorResult(call, fmt.Errorf("tool %s panicked: %v", call.Function.Name, p))
		}
	}()

	out, err := fn(ctx, json.RawMessage(args))
	if err != nil {
		return errorResult(call, err)
	}
	return llm.NewToolResult(call, out)
}

func errorResult(call llm.ToolCall, err error) llm.ToolResult {
	return llm.NewToolResult(call, ErrorPrefix+err.Error())
}
