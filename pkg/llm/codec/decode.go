// Package codec maps SSE frames of the bot protocol to typed llm.Events and
// back. Decoding is stateless: every frame is decoded on its own and
// accumulation across frames is left to the caller.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/sse"
)

const defaultErrorText = "Unknown error"

// Decode turns one frame into one event. It returns ErrKeepAlive for named
// frames without payload, and a *DecodeError for unknown event names or
// payloads that do not match their kind's schema.
func Decode(f *sse.Frame) (llm.Event, error) {
	if f == nil {
		return nil, ErrNilFrame
	}

	kind, ok := llm.ParseKind(f.Event)
	if !ok {
		return nil, &DecodeError{Reason: ReasonUnknownEvent, Event: f.Event, Data: f.Data, Err: ErrUnknownEvent}
	}

	// done carries no meaningful payload; bots send "{}" or nothing.
	if kind == llm.KindDone {
		return llm.DoneEvent{}, nil
	}

	data := strings.TrimSpace(f.Data)
	if data == "" {
		return nil, ErrKeepAlive
	}
	if !gjson.Valid(data) {
		return nil, malformed(f.Event, f.Data, "invalid JSON")
	}

	switch kind {
	case llm.KindText:
		text, err := decodeText(f.Event, data)
		if err != nil {
			return nil, err
		}
		return llm.TextEvent{Text: text}, nil
	case llm.KindReplaceResponse:
		text, err := decodeText(f.Event, data)
		if err != nil {
			return nil, err
		}
		return llm.ReplaceResponseEvent{Text: text}, nil
	case llm.KindError:
		return decodeError(f.Event, data)
	case llm.KindFile:
		return decodeFile(f.Event, data)
	case llm.KindJSON:
		return decodeJSON(f.Event, data)
	default:
		return nil, &DecodeError{Reason: ReasonUnknownEvent, Event: f.Event, Data: f.Data, Err: ErrUnknownEvent}
	}
}

func decodeText(event, data string) (string, error) {
	text := gjson.Get(data, "text")
	if !text.Exists() {
		return "", malformed(event, data, "missing text field")
	}
	if text.Type != gjson.String {
		return "", malformed(event, data, "text field is %s, want string", text.Type)
	}
	return text.String(), nil
}

func decodeError(event, data string) (llm.Event, error) {
	root := gjson.Parse(data)
	if !root.IsObject() {
		return nil, malformed(event, data, "error payload is not an object")
	}

	ev := llm.ErrorEvent{Text: defaultErrorText}
	if text := root.Get("text"); text.Type == gjson.String {
		ev.Text = text.String()
	}
	if retry := root.Get("allow_retry"); retry.IsBool() {
		ev.AllowRetry = retry.Bool()
	}
	return ev, nil
}

func decodeFile(event, data string) (llm.Event, error) {
	root := gjson.Parse(data)
	if !root.IsObject() {
		return nil, malformed(event, data, "file payload is not an object")
	}

	url := root.Get("url")
	if url.Type != gjson.String || url.String() == "" {
		return nil, malformed(event, data, "missing file url")
	}

	return llm.FileEvent{
		Name:        root.Get("name").String(),
		URL:         url.String(),
		ContentType: root.Get("content_type").String(),
	}, nil
}

func decodeJSON(event, data string) (llm.Event, error) {
	ev := llm.JSONEvent{Raw: json.RawMessage(data)}

	if calls := gjson.Get(data, "tool_calls"); calls.Exists() {
		if !calls.IsArray() {
			return nil, malformed(event, data, "tool_calls is not an array")
		}
		parsed, err := decodeToolCalls(calls)
		if err != nil {
			return nil, malformed(event, data, "%v", err)
		}
		ev.ToolCalls = parsed
		return ev, nil
	}

	choice := gjson.Get(data, "choices.0")
	deltaCalls := choice.Get("delta.tool_calls")
	finish := choice.Get("finish_reason").String()
	if deltaCalls.IsArray() || finish == "tool_calls" {
		ev.Delta = decodeDelta(deltaCalls, finish)
	}

	return ev, nil
}

func decodeToolCalls(calls gjson.Result) ([]llm.ToolCall, error) {
	out := make([]llm.ToolCall, 0, len(calls.Array()))
	for i, c := range calls.Array() {
		id := c.Get("id").String()
		name := c.Get("function.name").String()
		if id == "" || name == "" {
			return nil, fmt.Errorf("tool_calls[%d]: tool call needs id and function.name", i)
		}

		args := c.Get("function.arguments")
		var arguments string
		switch {
		case !args.Exists():
			return nil, fmt.Errorf("tool_calls[%d]: tool call has no function.arguments", i)
		case args.Type == gjson.String:
			arguments = args.String()
		default:
			// Some bots inline the argument object instead of a string.
			arguments = args.Raw
		}

		typ := c.Get("type").String()
		if typ == "" {
			typ = llm.ToolTypeFunction
		}

		out = append(out, llm.ToolCall{
			ID:   id,
			Type: typ,
			Function: llm.FunctionCall{
				Name:      name,
				Arguments: arguments,
			},
		})
	}
	return out, nil
}

func decodeDelta(parts gjson.Result, finish string) *llm.ToolCallDelta {
	delta := &llm.ToolCallDelta{FinishReason: finish}
	parts.ForEach(func(_, p gjson.Result) bool {
		delta.Parts = append(delta.Parts, llm.ToolCallDeltaPart{
			Index:     int(p.Get("index").Int()),
			ID:        p.Get("id").String(),
			Type:      p.Get("type").String(),
			Name:      p.Get("function.name").String(),
			Arguments: p.Get("function.arguments").String(),
		})
		return true
	})
	return delta
}
