package botsim

import (
	"strings"

	"github.com/papercomputeco/botstream/pkg/llm"
)

// Script produces the events that answer one turn.
type Script func(req *llm.ChatRequest) []llm.Event

// Scripts picks a Script per turn: Resume answers turns that carry tool
// results, Initial answers the rest.
type Scripts struct {
	Initial Script
	Resume  Script
}

// Static returns a Script that always answers with events.
func Static(events ...llm.Event) Script {
	return func(*llm.ChatRequest) []llm.Event {
		return events
	}
}

// IsResume reports whether req carries tool results, either structured or
// rendered into the prompt as XML.
func IsResume(req *llm.ChatRequest) bool {
	if len(req.ToolResults) > 0 {
		return true
	}
	msg := req.LastUserMessage()
	return msg != nil && strings.Contains(msg.Content, "<tool_results>")
}

// usesXML reports whether tools were rendered into the prompt instead of
// the tools field.
func usesXML(req *llm.ChatRequest) bool {
	msg := req.LastUserMessage()
	return len(req.Tools) == 0 && msg != nil &&
		(strings.Contains(msg.Content, "<tools>") || strings.Contains(msg.Content, "<tool_results>"))
}

func offersTool(req *llm.ChatRequest, name string) bool {
	for _, t := range req.Tools {
		if t.Function.Name == name {
			return true
		}
	}
	msg := req.LastUserMessage()
	return msg != nil && strings.Contains(msg.Content, "<"+name+">")
}

// DefaultScripts asks for get_time when the client offers it and reports the
// tool output once it comes back. Without tools it echoes the prompt.
func DefaultScripts() Scripts {
	return Scripts{
		Initial: defaultInitial,
		Resume:  defaultResume,
	}
}

func defaultInitial(req *llm.ChatRequest) []llm.Event {
	if !offersTool(req, "get_time") {
		prompt := ""
		if msg := req.LastUserMessage(); msg != nil {
			prompt = msg.Content
		}
		return []llm.Event{
			llm.TextEvent{Text: "You said: "},
			llm.TextEvent{Text: prompt},
			llm.DoneEvent{},
		}
	}

	if usesXML(req) {
		return []llm.Event{
			llm.TextEvent{Text: "Let me check the time. "},
			llm.TextEvent{Text: `<tool_call><invoke name="get_time">`},
			llm.TextEvent{Text: `<parameter name="timezone">UTC</parameter></invoke></tool_call>`},
			llm.DoneEvent{},
		}
	}

	return []llm.Event{
		llm.TextEvent{Text: "Let me check the time. "},
		llm.JSONEvent{ToolCalls: []llm.ToolCall{{
			ID:   "call_sim_1",
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      "get_time",
				Arguments: `{"timezone":"UTC"}`,
			},
		}}},
		llm.DoneEvent{},
	}
}

func defaultResume(req *llm.ChatRequest) []llm.Event {
	var outputs []string
	if len(req.ToolResults) > 0 {
		for _, r := range req.ToolResults {
			outputs = append(outputs, r.Content)
		}
	} else if msg := req.LastUserMessage(); msg != nil {
		if i := strings.LastIndex(msg.Content, "<tool_results>"); i >= 0 {
			outputs = taggedValues(msg.Content[i:], "output")
		}
	}

	events := []llm.Event{llm.ReplaceResponseEvent{Text: "Here is what the tools said:"}}
	for _, out := range outputs {
		events = append(events, llm.TextEvent{Text: "\n- " + out})
	}
	return append(events, llm.DoneEvent{})
}

// taggedValues returns the contents of every <tag>...</tag> in s.
func taggedValues(s, tag string) []string {
	open, end := "<"+tag+">", "</"+tag+">"

	var values []string
	for {
		i := strings.Index(s, open)
		if i < 0 {
			return values
		}
		s = s[i+len(open):]
		j := strings.Index(s, end)
		if j < 0 {
			return values
		}
		values = append(values, s[:j])
		s = s[j+len(end):]
	}
}
