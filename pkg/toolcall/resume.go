// Package toolcall carries the caller side of tool calling: checking that
// every tool call has been answered, building the resumed request, and
// merging OpenAI-style streaming fragments into complete calls.
package toolcall

import (
	"github.com/papercomputeco/botstream/pkg/llm"
)

// Validate checks that results answer every call. Matching is by id and
// ignores order. Several results for the same call are tolerated.
func Validate(calls []llm.ToolCall, results []llm.ToolResult) error {
	issued := make(map[string]struct{}, len(calls))
	for _, c := range calls {
		issued[c.ID] = struct{}{}
	}

	answered := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := issued[r.ToolCallID]; !ok {
			return &UnknownToolResultError{ToolCallID: r.ToolCallID}
		}
		answered[r.ToolCallID] = struct{}{}
	}

	var missing []string
	for _, c := range calls {
		if _, ok := answered[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) > 0 {
		return &IncompleteToolResultsError{Missing: missing}
	}
	return nil
}

// BuildResume returns the request that continues original after its tool
// calls were executed. The original is left untouched; the copy carries the
// same user, conversation and message ids so the service can associate the
// results with its pending turn. Nested rounds are built by calling
// BuildResume again on the previous resumed request.
func BuildResume(original *llm.ChatRequest, calls []llm.ToolCall, results []llm.ToolResult) (*llm.ChatRequest, error) {
	if err := original.Validate(); err != nil {
		return nil, err
	}
	if err := Validate(calls, results); err != nil {
		return nil, err
	}

	resumed := original.Clone()
	resumed.ToolCalls = append([]llm.ToolCall(nil), calls...)
	resumed.ToolResults = append([]llm.ToolResult(nil), results...)
	return resumed, nil
}
