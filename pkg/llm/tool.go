package llm

import "encoding/json"

// ToolTypeFunction is the only tool type the protocol defines.
const ToolTypeFunction = "function"

// Tool is an entry of the tools catalogue offered to the bot.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Parameters  *FunctionParameters `json:"parameters,omitempty"`
}

// FunctionParameters is the JSON schema of a function's arguments.
// Properties is kept raw so that key order survives rendering.
type FunctionParameters struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Required   []string        `json:"required,omitempty"`
}

// NewFunctionTool builds a function tool entry.
func NewFunctionTool(name, description string, params *FunctionParameters) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// ToolCall is a model-issued request to execute a function. Arguments is the
// opaque JSON-encoded argument object as sent by the bot.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult answers one ToolCall. ToolCallID must match the call's ID.
type ToolResult struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// NewToolResult builds a result for call with the given content.
func NewToolResult(call ToolCall, content string) ToolResult {
	return ToolResult{
		Role:       RoleTool,
		Name:       call.Function.Name,
		ToolCallID: call.ID,
		Content:    content,
	}
}

// ToolCallDelta is one OpenAI-style streaming fragment of tool calls, as
// carried by a json event. Fragments are merged by index into ToolCalls.
type ToolCallDelta struct {
	Parts        []ToolCallDeltaPart
	FinishReason string
}

// ToolCallDeltaPart is the fragment for a single tool call index. Empty
// strings mean "not present in this fragment".
type ToolCallDeltaPart struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}
