package xmltool_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/xmltool"
)

const weatherMarkup = `<tool name="get_weather"><arg name="city">Paris</arg></tool>`

// pushAll feeds events through a and returns everything surfaced.
func pushAll(a *xmltool.Adapter, events ...llm.Event) []llm.Event {
	var out []llm.Event
	for _, ev := range events {
		out = append(out, a.Push(ev)...)
	}
	return out
}

// split returns the surfaced text and the tool calls, in order.
func split(events []llm.Event) (string, []llm.ToolCall) {
	var (
		text  strings.Builder
		calls []llm.ToolCall
	)
	for _, ev := range events {
		switch e := ev.(type) {
		case llm.TextEvent:
			text.WriteString(e.Text)
		case llm.JSONEvent:
			calls = append(calls, e.ToolCalls...)
		}
	}
	return text.String(), calls
}

var _ = Describe("Adapter", func() {
	var adapter *xmltool.Adapter

	BeforeEach(func() {
		adapter = xmltool.NewAdapter()
	})

	It("replaces markup with a tool call and keeps the surrounding text", func() {
		out := adapter.Push(llm.TextEvent{Text: "before " + weatherMarkup + " after"})

		Expect(out).To(Equal([]llm.Event{
			llm.TextEvent{Text: "before "},
			llm.JSONEvent{ToolCalls: []llm.ToolCall{{
				ID:       "call_1",
				Type:     llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`},
			}}},
			llm.TextEvent{Text: " after"},
		}))
		Expect(adapter.State()).To(Equal(xmltool.StateIdle))
	})

	It("reassembles markup split across many deltas", func() {
		input := "before " + weatherMarkup + " after"

		var events []llm.Event
		for _, r := range input {
			events = append(events, llm.TextEvent{Text: string(r)})
		}
		events = append(events, llm.DoneEvent{})

		out := pushAll(adapter, events...)
		text, calls := split(out)
		Expect(text).To(Equal("before  after"))
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Function.Name).To(Equal("get_weather"))
		Expect(calls[0].Function.Arguments).To(MatchJSON(`{"city":"Paris"}`))
		Expect(out[len(out)-1]).To(Equal(llm.DoneEvent{}))
	})

	It("holds back a possible opening marker until it is decided", func() {
		Expect(adapter.Push(llm.TextEvent{Text: "a <to"})).To(Equal([]llm.Event{llm.TextEvent{Text: "a "}}))
		Expect(adapter.Buffered()).To(Equal("<to"))

		Expect(adapter.Push(llm.TextEvent{Text: "day"})).To(Equal([]llm.Event{llm.TextEvent{Text: "<today"}}))
		Expect(adapter.Buffered()).To(BeEmpty())
	})

	It("passes ordinary markup through", func() {
		out := adapter.Push(llm.TextEvent{Text: "see <b>bold</b> text"})
		Expect(out).To(Equal([]llm.Event{llm.TextEvent{Text: "see <b>bold</b> text"}}))
	})

	It("flushes partial markup verbatim when the turn ends", func() {
		Expect(adapter.Push(llm.TextEvent{Text: `x <tool name="f"><arg`})).To(Equal([]llm.Event{llm.TextEvent{Text: "x "}}))
		Expect(adapter.State()).To(Equal(xmltool.StateInTag))

		out := adapter.Push(llm.DoneEvent{})
		Expect(out).To(Equal([]llm.Event{
			llm.TextEvent{Text: `<tool name="f"><arg`},
			llm.DoneEvent{},
		}))
		Expect(adapter.State()).To(Equal(xmltool.StateFlushing))
		Expect(adapter.Buffered()).To(BeEmpty())

		adapter.Push(llm.TextEvent{Text: "next"})
		Expect(adapter.State()).To(Equal(xmltool.StateIdle))
	})

	It("stays idle when the turn ends with nothing held back", func() {
		Expect(adapter.Flush()).To(BeEmpty())
		Expect(adapter.State()).To(Equal(xmltool.StateIdle))
	})

	It("flushes a held-back prefix when the turn ends", func() {
		adapter.Push(llm.TextEvent{Text: "done <"})
		Expect(adapter.Push(llm.DoneEvent{})).To(Equal([]llm.Event{
			llm.TextEvent{Text: "<"},
			llm.DoneEvent{},
		}))
	})

	It("passes unparseable complete markup through as text", func() {
		out := adapter.Push(llm.TextEvent{Text: `<tool name="">x</tool>`})
		Expect(out).To(Equal([]llm.Event{llm.TextEvent{Text: `<tool name="">x</tool>`}}))
	})

	It("numbers synthetic ids per adapter", func() {
		out := adapter.Push(llm.TextEvent{Text: weatherMarkup + weatherMarkup})
		_, calls := split(out)
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].ID).To(Equal("call_1"))
		Expect(calls[1].ID).To(Equal("call_2"))
	})

	It("skips reserved ids", func() {
		adapter = xmltool.NewAdapter(xmltool.WithReservedIDs("call_1", "call_3"))
		out := adapter.Push(llm.TextEvent{Text: weatherMarkup + weatherMarkup})
		_, calls := split(out)
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].ID).To(Equal("call_2"))
		Expect(calls[1].ID).To(Equal("call_4"))
	})

	It("passes non-text events through untouched", func() {
		for _, ev := range []llm.Event{
			llm.ErrorEvent{Text: "x", AllowRetry: true},
			llm.FileEvent{Name: "a", URL: "https://files.example/a"},
			llm.JSONEvent{Raw: []byte(`{"a":1}`)},
		} {
			Expect(adapter.Push(ev)).To(Equal([]llm.Event{ev}))
		}
	})

	It("releases markup that outgrows the buffer", func() {
		adapter = xmltool.NewAdapter(xmltool.WithMaxBuffer(10))
		out := adapter.Push(llm.TextEvent{Text: `<tool name="f">0123456789`})
		Expect(out).To(Equal([]llm.Event{llm.TextEvent{Text: `<tool name="f">0123456789`}}))
		Expect(adapter.State()).To(Equal(xmltool.StateIdle))
	})

	Context("replace_response", func() {
		It("discards pending markup", func() {
			adapter.Push(llm.TextEvent{Text: `abc <tool name="f">`})
			Expect(adapter.State()).To(Equal(xmltool.StateInTag))

			out := adapter.Push(llm.ReplaceResponseEvent{Text: "fresh"})
			Expect(out).To(Equal([]llm.Event{llm.ReplaceResponseEvent{Text: "fresh"}}))
			Expect(adapter.State()).To(Equal(xmltool.StateIdle))
			Expect(adapter.Buffered()).To(BeEmpty())
		})

		It("still replaces when the replacement starts with markup", func() {
			out := adapter.Push(llm.ReplaceResponseEvent{Text: `<tool name="f"></tool> tail`})
			Expect(out).To(HaveLen(3))
			Expect(out[0]).To(Equal(llm.ReplaceResponseEvent{}))
			Expect(out[1].(llm.JSONEvent).ToolCalls[0].Function.Arguments).To(Equal("{}"))
			Expect(out[2]).To(Equal(llm.TextEvent{Text: " tail"}))
		})
	})

	Context("dialects", func() {
		It("reads <tool_call><invoke> blocks", func() {
			markup := "<tool_call>\n  <invoke name=\"get_weather\">\n    <parameter name=\"location\">Taipei</parameter>\n    <parameter name=\"unit\">celsius</parameter>\n  </invoke>\n</tool_call>"

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Name).To(Equal("get_weather"))
			Expect(calls[0].Function.Arguments).To(Equal(`{"location":"Taipei","unit":"celsius"}`))
		})

		It("reads several invokes in one block", func() {
			markup := `<tool_call><invoke name="a"><parameter name="x">1</parameter></invoke><invoke name="b"></invoke></tool_call>`

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].Function.Name).To(Equal("a"))
			Expect(calls[1].Function.Name).To(Equal("b"))
			Expect(calls[1].Function.Arguments).To(Equal("{}"))
		})

		It("reads bare invokes and decodes entities", func() {
			markup := `<invoke name="search"><parameter name="q">salt &amp; pepper</parameter></invoke>`

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Arguments).To(MatchJSON(`{"q":"salt & pepper"}`))
		})

		It("reads function-named tags for declared tools", func() {
			adapter = xmltool.NewAdapter(xmltool.WithTools(llm.NewFunctionTool("get_weather", "", nil)))
			markup := `ok <get_weather><city>Paris</city></get_weather>`

			out := adapter.Push(llm.TextEvent{Text: markup})
			text, calls := split(out)
			Expect(text).To(Equal("ok "))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Arguments).To(Equal(`{"city":"Paris"}`))
		})

		It("ignores function-named tags for undeclared tools", func() {
			markup := `<get_weather><city>Paris</city></get_weather>`
			Expect(adapter.Push(llm.TextEvent{Text: markup})).To(Equal([]llm.Event{llm.TextEvent{Text: markup}}))
		})

		It("reads a function-named tag inside <tool_call>", func() {
			markup := `<tool_call><get_time><zone>UTC</zone></get_time></tool_call>`

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Name).To(Equal("get_time"))
			Expect(calls[0].Function.Arguments).To(Equal(`{"zone":"UTC"}`))
		})

		It("reads the name/arguments form", func() {
			markup := `<tool_call><name>lookup</name><arguments>{"id": 7}</arguments></tool_call>`

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Name).To(Equal("lookup"))
			Expect(calls[0].Function.Arguments).To(MatchJSON(`{"id": 7}`))
		})

		It("keeps argument names with path characters literal", func() {
			markup := `<tool name="f"><arg name="a.b">x</arg></tool>`

			_, calls := split(adapter.Push(llm.TextEvent{Text: markup}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Function.Arguments).To(MatchJSON(`{"a.b":"x"}`))
		})
	})
})
