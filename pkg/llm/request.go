package llm

import (
	"errors"
	"maps"
	"slices"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion is the bot protocol version sent with every request.
	ProtocolVersion = "1.1"

	// RequestTypeQuery is the only request type a turn uses.
	RequestTypeQuery = "query"
)

var (
	// ErrNilRequest is returned when a nil *ChatRequest is supplied.
	ErrNilRequest = errors.New("nil chat request")

	// ErrEmptyQuery is returned for a request without any messages.
	ErrEmptyQuery = errors.New("chat request has no messages")
)

// ChatRequest is the outbound turn descriptor. The JSON field names are part
// of the service contract.
type ChatRequest struct {
	Version string    `json:"version"`
	Type    string    `json:"type"`
	Query   []Message `json:"query"`

	// Sampling controls
	Temperature   *float64           `json:"temperature,omitempty"`
	LogitBias     map[string]float64 `json:"logit_bias,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`

	// Identifiers echoed verbatim across resumed turns so the service keeps
	// its server-side context.
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`

	// Tool calling
	Tools       []Tool       `json:"tools,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// NewRequest builds a query request for the given history with fresh
// identifiers.
func NewRequest(messages ...Message) *ChatRequest {
	return &ChatRequest{
		Version:        ProtocolVersion,
		Type:           RequestTypeQuery,
		Query:          messages,
		UserID:         newID("u"),
		ConversationID: newID("c"),
		MessageID:      newID("m"),
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Validate reports request-construction errors before any I/O happens.
// Missing version/type are filled with protocol defaults.
func (r *ChatRequest) Validate() error {
	if r == nil {
		return ErrNilRequest
	}
	if len(r.Query) == 0 {
		return ErrEmptyQuery
	}
	if r.Version == "" {
		r.Version = ProtocolVersion
	}
	if r.Type == "" {
		r.Type = RequestTypeQuery
	}
	return nil
}

// Clone returns a deep copy of the request so resumed turns never alias the
// caller's slices or maps.
func (r *ChatRequest) Clone() *ChatRequest {
	if r == nil {
		return nil
	}

	out := *r
	out.Query = make([]Message, len(r.Query))
	for i, m := range r.Query {
		out.Query[i] = m
		out.Query[i].Attachments = slices.Clone(m.Attachments)
	}
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	out.LogitBias = maps.Clone(r.LogitBias)
	out.StopSequences = slices.Clone(r.StopSequences)
	out.Tools = slices.Clone(r.Tools)
	out.ToolCalls = slices.Clone(r.ToolCalls)
	out.ToolResults = slices.Clone(r.ToolResults)
	return &out
}

// LastUserMessage returns a pointer into Query for the most recent user
// message, or nil.
func (r *ChatRequest) LastUserMessage() *Message {
	for i := len(r.Query) - 1; i >= 0; i-- {
		if r.Query[i].Role == RoleUser {
			return &r.Query[i]
		}
	}
	return nil
}
