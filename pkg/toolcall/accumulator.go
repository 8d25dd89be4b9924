package toolcall

import (
	"log/slog"
	"slices"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
)

// FinishReasonToolCalls ends a run of streaming tool call fragments.
const FinishReasonToolCalls = "tool_calls"

// Accumulator merges streaming tool call fragments by index. Fragments for an
// index replace id, type and name when present and concatenate arguments.
// The merged calls are emitted once, when the finish reason arrives or when
// the turn ends with fragments still pending.
type Accumulator struct {
	pending map[int]*llm.ToolCall
	logger  *slog.Logger
}

// NewAccumulator returns an empty accumulator. A nil logger discards.
func NewAccumulator(log *slog.Logger) *Accumulator {
	if log == nil {
		log = logger.Nop()
	}
	return &Accumulator{
		pending: make(map[int]*llm.ToolCall),
		logger:  log,
	}
}

// Push feeds one event through the accumulator. Delta events are consumed;
// every other event passes through unchanged. A Done event with fragments
// still pending is preceded by the merged calls.
func (a *Accumulator) Push(ev llm.Event) []llm.Event {
	switch e := ev.(type) {
	case llm.JSONEvent:
		if e.Delta == nil {
			return []llm.Event{ev}
		}
		a.merge(e.Delta)
		if e.Delta.FinishReason != FinishReasonToolCalls {
			return nil
		}
		if calls := a.flush(); len(calls) > 0 {
			return []llm.Event{llm.JSONEvent{ToolCalls: calls}}
		}
		return nil
	case llm.DoneEvent:
		if calls := a.flush(); len(calls) > 0 {
			return []llm.Event{llm.JSONEvent{ToolCalls: calls}, ev}
		}
		return []llm.Event{ev}
	default:
		return []llm.Event{ev}
	}
}

// Pending reports whether fragments are buffered.
func (a *Accumulator) Pending() bool {
	return len(a.pending) > 0
}

func (a *Accumulator) merge(d *llm.ToolCallDelta) {
	for _, p := range d.Parts {
		call, ok := a.pending[p.Index]
		if !ok {
			call = &llm.ToolCall{Type: llm.ToolTypeFunction}
			a.pending[p.Index] = call
		}
		if p.ID != "" {
			call.ID = p.ID
		}
		if p.Type != "" {
			call.Type = p.Type
		}
		if p.Name != "" {
			call.Function.Name = p.Name
		}
		call.Function.Arguments += p.Arguments
	}
}

func (a *Accumulator) flush() []llm.ToolCall {
	indexes := make([]int, 0, len(a.pending))
	for i := range a.pending {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	calls := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		call := a.pending[i]
		if call.ID == "" || call.Function.Name == "" {
			a.logger.Debug("dropping incomplete tool call",
				"index", i,
				"id", call.ID,
				"name", call.Function.Name,
			)
			continue
		}
		if call.Function.Arguments == "" {
			call.Function.Arguments = "{}"
		}
		calls = append(calls, *call)
	}

	clear(a.pending)
	return calls
}
