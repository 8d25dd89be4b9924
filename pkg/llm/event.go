package llm

import "encoding/json"

// Kind identifies one of the six event kinds of the bot protocol.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindReplaceResponse
	KindError
	KindDone
	KindJSON
	KindFile
)

var kindNames = map[Kind]string{
	KindText:            "text",
	KindReplaceResponse: "replace_response",
	KindError:           "error",
	KindDone:            "done",
	KindJSON:            "json",
	KindFile:            "file",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a wire event name to its Kind. Matching is exact and
// case-sensitive.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "text":
		return KindText, true
	case "replace_response":
		return KindReplaceResponse, true
	case "error":
		return KindError, true
	case "done":
		return KindDone, true
	case "json":
		return KindJSON, true
	case "file":
		return KindFile, true
	default:
		return 0, false
	}
}

// Event is one decoded frame of a turn. The set of implementations is
// closed: TextEvent, ReplaceResponseEvent, ErrorEvent, DoneEvent, JSONEvent
// and FileEvent. Switch on the concrete type to consume it.
type Event interface {
	Kind() Kind
	event()
}

// TextEvent is an incremental delta appended to the turn's response.
type TextEvent struct {
	Text string
}

// ReplaceResponseEvent replaces everything accumulated so far in the turn.
type ReplaceResponseEvent struct {
	Text string
}

// ErrorEvent is a server-reported failure. AllowRetry is advisory: it tells
// the caller whether the same request may safely be reissued.
type ErrorEvent struct {
	Text       string
	AllowRetry bool
}

// DoneEvent ends the turn. Nothing follows it.
type DoneEvent struct{}

// JSONEvent is an out-of-band structured payload. Exactly one of ToolCalls,
// Delta or neither (a plain payload in Raw) is meaningful.
type JSONEvent struct {
	// ToolCalls is set when the model requests tool execution.
	ToolCalls []ToolCall

	// Delta is set for an OpenAI-style streaming fragment that still has to
	// be merged with its siblings; the session never hands these out.
	Delta *ToolCallDelta

	// Raw is the payload as received. Synthetic events have no Raw.
	Raw json.RawMessage
}

// FileEvent references an artifact generated by the bot.
type FileEvent struct {
	Name        string
	URL         string
	ContentType string
}

func (TextEvent) Kind() Kind            { return KindText }
func (ReplaceResponseEvent) Kind() Kind { return KindReplaceResponse }
func (ErrorEvent) Kind() Kind           { return KindError }
func (DoneEvent) Kind() Kind            { return KindDone }
func (JSONEvent) Kind() Kind            { return KindJSON }
func (FileEvent) Kind() Kind            { return KindFile }

func (TextEvent) event()            {}
func (ReplaceResponseEvent) event() {}
func (ErrorEvent) event()           {}
func (DoneEvent) event()            {}
func (JSONEvent) event()            {}
func (FileEvent) event()            {}

// HasToolCalls reports whether the event carries complete tool calls.
func (e JSONEvent) HasToolCalls() bool {
	return len(e.ToolCalls) > 0
}
