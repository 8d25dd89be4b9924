// Package xmltool lets bots without native tool calling take part in tool
// round trips. On the request side it renders the tools catalogue and tool
// results as XML into the prompt; on the response side the Adapter spots
// tool-call markup in streamed text and turns it into json tool-call events.
package xmltool

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
)

// State is the adapter's scanning state.
type State uint8

const (
	// StateIdle scans text for an opening marker.
	StateIdle State = iota

	// StateInTag buffers markup until its closing tag arrives.
	StateInTag

	// StateFlushing follows the end of a turn that released held-back
	// markup as plain text. The next Push returns the adapter to StateIdle.
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInTag:
		return "in_tag"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

const defaultMaxBuffer = 256 * 1024

// marker pairs an opening marker with the tag that closes its span.
type marker struct {
	open  string
	close string
}

var builtinMarkers = []marker{
	{open: "<tool_call>", close: "</tool_call>"},
	{open: "<tool ", close: "</tool>"},
	{open: "<invoke ", close: "</invoke>"},
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTools declares the functions whose own names may be used as tags,
// as in <get_weather><city>Paris</city></get_weather>.
func WithTools(tools ...llm.Tool) AdapterOption {
	return func(a *Adapter) {
		for _, t := range tools {
			name := t.Function.Name
			if name == "" {
				continue
			}
			a.markers = append(a.markers, marker{open: "<" + name + ">", close: "</" + name + ">"})
			a.declared[name] = struct{}{}
		}
	}
}

// WithMaxBuffer caps how much unterminated markup is held back. Past the
// cap the buffer is released as text.
func WithMaxBuffer(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBuffer = n
		}
	}
}

// WithReservedIDs keeps synthetic ids off the given ids, typically those of
// the tool calls already made earlier in the conversation.
func WithReservedIDs(ids ...string) AdapterOption {
	return func(a *Adapter) {
		for _, id := range ids {
			a.reserved[id] = struct{}{}
		}
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// Adapter rewrites one turn's event stream, replacing tool-call markup in
// text with json events carrying the equivalent tool calls. Its output uses
// the same six event kinds as its input. An Adapter is not safe for
// concurrent use; create one per turn.
type Adapter struct {
	state     State
	buf       strings.Builder
	closing   string
	markers   []marker
	declared  map[string]struct{}
	reserved  map[string]struct{}
	maxBuffer int
	nextID    int
	logger    *slog.Logger
}

// NewAdapter returns an adapter in StateIdle.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		markers:   append([]marker(nil), builtinMarkers...),
		declared:  make(map[string]struct{}),
		reserved:  make(map[string]struct{}),
		maxBuffer: defaultMaxBuffer,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current scanning state.
func (a *Adapter) State() State {
	return a.state
}

// Buffered returns the text currently held back.
func (a *Adapter) Buffered() string {
	return a.buf.String()
}

// Push feeds one upstream event and returns the events to surface, in
// order. Text around a complete markup span passes through; the span itself
// becomes a json event. Partial markup is held until it completes or the
// turn ends.
func (a *Adapter) Push(ev llm.Event) []llm.Event {
	if a.state == StateFlushing {
		a.state = StateIdle
	}

	switch e := ev.(type) {
	case llm.TextEvent:
		if e.Text == "" {
			return nil
		}
		a.buf.WriteString(e.Text)
		return a.scan(nil)
	case llm.ReplaceResponseEvent:
		// The replacement supersedes whatever markup was pending.
		a.reset()
		a.buf.WriteString(e.Text)
		out := a.scan(nil)
		if len(out) > 0 {
			if t, ok := out[0].(llm.TextEvent); ok {
				out[0] = llm.ReplaceResponseEvent{Text: t.Text}
				return out
			}
		}
		return append([]llm.Event{llm.ReplaceResponseEvent{}}, out...)
	case llm.DoneEvent:
		return append(a.flush(), ev)
	default:
		return []llm.Event{ev}
	}
}

// Flush releases any held-back text verbatim, as the end of a turn would.
// When text was released the adapter is left in StateFlushing.
func (a *Adapter) Flush() []llm.Event {
	return a.flush()
}

func (a *Adapter) reset() {
	a.state = StateIdle
	a.closing = ""
	a.buf.Reset()
}

// flush releases held-back text verbatim.
func (a *Adapter) flush() []llm.Event {
	if a.buf.Len() == 0 {
		a.reset()
		return nil
	}

	text := a.buf.String()
	a.logger.Debug("flushing unterminated tool markup as text", "bytes", len(text))
	a.reset()
	a.state = StateFlushing
	return []llm.Event{llm.TextEvent{Text: text}}
}

func (a *Adapter) scan(out []llm.Event) []llm.Event {
	for {
		text := a.buf.String()

		switch a.state {
		case StateIdle:
			start, m := a.findOpening(text)
			if start < 0 {
				hold := a.holdBack(text)
				emit := text[:len(text)-hold]
				if emit != "" {
					out = append(out, llm.TextEvent{Text: emit})
				}
				a.setBuffer(text[len(text)-hold:])
				return out
			}

			if start > 0 {
				out = append(out, llm.TextEvent{Text: text[:start]})
			}
			a.state = StateInTag
			a.closing = m.close
			a.setBuffer(text[start:])

		case StateInTag:
			end := strings.Index(text, a.closing)
			if end < 0 {
				if len(text) > a.maxBuffer {
					a.logger.Debug("tool markup exceeds buffer, releasing as text", "bytes", len(text))
					out = append(out, llm.TextEvent{Text: text})
					a.reset()
				}
				return out
			}

			end += len(a.closing)
			out = append(out, a.convert(text[:end]))
			a.state = StateIdle
			a.closing = ""
			a.setBuffer(text[end:])

		default:
			a.state = StateIdle
		}
	}
}

// convert turns a complete markup span into a json event, or into the
// original text when it cannot be parsed.
func (a *Adapter) convert(span string) llm.Event {
	calls, err := parseSpan(span, a.declared)
	if err != nil || len(calls) == 0 {
		a.logger.Debug("passing unparseable tool markup through as text", "error", err)
		return llm.TextEvent{Text: span}
	}

	toolCalls := make([]llm.ToolCall, 0, len(calls))
	for _, c := range calls {
		args, err := c.argumentsJSON()
		if err != nil {
			a.logger.Debug("passing tool markup with unencodable arguments through as text", "error", err)
			return llm.TextEvent{Text: span}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:   a.syntheticID(),
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      c.name,
				Arguments: args,
			},
		})
	}
	return llm.JSONEvent{ToolCalls: toolCalls}
}

func (a *Adapter) setBuffer(s string) {
	a.buf.Reset()
	a.buf.WriteString(s)
}

// findOpening returns the position of the earliest opening marker.
func (a *Adapter) findOpening(text string) (int, marker) {
	best := -1
	var found marker
	for _, m := range a.markers {
		i := strings.Index(text, m.open)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(m.open) > len(found.open)) {
			best = i
			found = m
		}
	}
	return best, found
}

// holdBack returns the length of the longest suffix of text that could
// still grow into an opening marker.
func (a *Adapter) holdBack(text string) int {
	longest := 0
	for _, m := range a.markers {
		n := min(len(m.open)-1, len(text))
		for ; n > longest; n-- {
			if strings.HasSuffix(text, m.open[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}

// syntheticID returns the next "call_N" id not yet used or reserved.
func (a *Adapter) syntheticID() string {
	for {
		a.nextID++
		id := "call_" + strconv.Itoa(a.nextID)
		if _, taken := a.reserved[id]; !taken {
			a.reserved[id] = struct{}{}
			return id
		}
	}
}
