package llm

// Transcript accumulates the events of one turn the way a caller renders
// them: text deltas are appended, a replace_response discards them, tool
// calls and files are collected.
type Transcript struct {
	text      string
	ToolCalls []ToolCall
	Files     []FileEvent
	Errors    []ErrorEvent
	Done      bool
}

// Apply folds ev into the transcript.
func (t *Transcript) Apply(ev Event) {
	switch e := ev.(type) {
	case TextEvent:
		t.text += e.Text
	case ReplaceResponseEvent:
		t.text = e.Text
	case ErrorEvent:
		t.Errors = append(t.Errors, e)
	case JSONEvent:
		t.ToolCalls = append(t.ToolCalls, e.ToolCalls...)
	case FileEvent:
		t.Files = append(t.Files, e)
	case DoneEvent:
		t.Done = true
	}
}

// Text returns the accumulated response text.
func (t *Transcript) Text() string {
	return t.text
}

// AssistantMessage returns the accumulated text as an assistant message,
// ready to append to the next turn's history.
func (t *Transcript) AssistantMessage() Message {
	return NewTextMessage(RoleAssistant, t.text)
}
