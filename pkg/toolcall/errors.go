package toolcall

import (
	"fmt"
	"strings"
)

// IncompleteToolResultsError is returned when a resume is attempted without a
// result for every tool call. Missing lists the unanswered call ids in the
// order the calls were issued.
type IncompleteToolResultsError struct {
	Missing []string
}

func (e *IncompleteToolResultsError) Error() string {
	return fmt.Sprintf("incomplete tool results: missing results for tool calls %s", strings.Join(e.Missing, ", "))
}

// UnknownToolResultError is returned when a result answers a tool call id
// that was never issued.
type UnknownToolResultError struct {
	ToolCallID string
}

func (e *UnknownToolResultError) Error() string {
	return fmt.Sprintf("tool result for unknown tool call %q", e.ToolCallID)
}
