package xmltool

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/botstream/pkg/llm"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return xmlEscaper.Replace(s)
}

// RenderTools renders the tools catalogue as a <tools> block. Parameters
// keep the order of the schema's properties. An empty catalogue renders as
// the empty string.
func RenderTools(tools []llm.Tool) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n<tools>")
	for _, t := range tools {
		b.WriteString("\n")
		renderTool(&b, t)
	}
	b.WriteString("\n</tools>")
	return b.String()
}

func renderTool(b *strings.Builder, t llm.Tool) {
	name := t.Function.Name
	b.WriteString("<" + name + ">")

	if t.Function.Description != "" {
		b.WriteString("\n<description>" + escape(t.Function.Description) + "</description>")
	}

	if params := t.Function.Parameters; params != nil {
		b.WriteString("\n<parameters>")
		gjson.ParseBytes(params.Properties).ForEach(func(key, value gjson.Result) bool {
			p := key.String()
			b.WriteString("\n<" + p + "_name>" + p + "</" + p + "_name>")
			if typ := value.Get("type"); typ.Type == gjson.String {
				b.WriteString("\n<" + p + "_type>" + typ.String() + "</" + p + "_type>")
			}
			if desc := value.Get("description"); desc.Type == gjson.String {
				b.WriteString("\n<" + p + "_description>" + escape(desc.String()) + "</" + p + "_description>")
			}
			required := isOneOf(p, params.Required)
			b.WriteString("\n<" + p + "_required>" + strconv.FormatBool(required) + "</" + p + "_required>")
			if enum := value.Get("enum"); enum.IsArray() {
				b.WriteString("\n<" + p + "_enum>")
				enum.ForEach(func(_, option gjson.Result) bool {
					if option.Type == gjson.String {
						b.WriteString("\n<option>" + escape(option.String()) + "</option>")
					}
					return true
				})
				b.WriteString("\n</" + p + "_enum>")
			}
			return true
		})
		b.WriteString("\n</parameters>")
	}

	b.WriteString("\n</" + name + ">")
}

// RenderToolResults renders results as a <tool_results> block. Contents
// starting with "ERROR:" or "Error:" go into <error>, the rest into
// <output>.
func RenderToolResults(results []llm.ToolResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n<tool_results>")
	for _, r := range results {
		b.WriteString("\n  <result tool_call_id=\"" + escape(r.ToolCallID) + "\">")
		tag := "output"
		if IsErrorContent(r.Content) {
			tag = "error"
		}
		b.WriteString("\n    <" + tag + ">" + escape(r.Content) + "</" + tag + ">")
		b.WriteString("\n  </result>")
	}
	b.WriteString("\n</tool_results>")
	return b.String()
}

// IsErrorContent reports whether a tool result's content reports a failure.
func IsErrorContent(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "ERROR:") || strings.HasPrefix(trimmed, "Error:")
}

// PrepareRequest returns a copy of req for a bot that only understands
// text. The tools catalogue and any tool results are rendered into the last
// user message, and the structured tools, tool_calls and tool_results fields
// are cleared. A request without a user message is returned as a plain copy.
func PrepareRequest(req *llm.ChatRequest) *llm.ChatRequest {
	out := req.Clone()
	if out == nil {
		return nil
	}

	msg := out.LastUserMessage()
	if msg == nil {
		return out
	}

	if len(out.Tools) > 0 {
		msg.Content += toolUsagePrompt + RenderTools(out.Tools)
		out.Tools = nil
	}
	if len(out.ToolResults) > 0 {
		msg.Content += toolResultsPrompt + RenderToolResults(out.ToolResults)
		out.ToolCalls = nil
		out.ToolResults = nil
	}
	return out
}
