package llm

// Roles used in the query history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// DefaultContentType is the content type bots expect for plain prompts.
const DefaultContentType = "text/markdown"

// Message represents a single message in the query history of a turn.
type Message struct {
	Role        string       `json:"role"` // "system", "user", "assistant", "tool"
	Content     string       `json:"content"`
	ContentType string       `json:"content_type,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment references a file that was already uploaded by the upload
// collaborator. It is embedded into the message unmodified.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Name        string `json:"name,omitempty"`
}

// NewTextMessage creates a simple markdown message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:        role,
		Content:     text,
		ContentType: DefaultContentType,
	}
}

// WithAttachments returns a copy of m carrying the given attachments after
// any it already had.
func (m Message) WithAttachments(attachments ...Attachment) Message {
	out := m
	out.Attachments = append(append([]Attachment(nil), m.Attachments...), attachments...)
	return out
}
