package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/sse"
)

// Encode renders ev as the frame a bot would send for it. Decoding the
// result yields ev again; a JSONEvent with Raw is re-emitted byte for byte.
func Encode(ev llm.Event) (*sse.Frame, error) {
	var (
		data string
		err  error
	)

	switch e := ev.(type) {
	case llm.TextEvent:
		data, err = sjson.Set("{}", "text", e.Text)
	case llm.ReplaceResponseEvent:
		data, err = sjson.Set("{}", "text", e.Text)
	case llm.ErrorEvent:
		data, err = encodeError(e)
	case llm.DoneEvent:
		data = "{}"
	case llm.FileEvent:
		data, err = encodeFile(e)
	case llm.JSONEvent:
		data, err = encodeJSON(e)
	case nil:
		return nil, fmt.Errorf("codec: encode nil event")
	default:
		return nil, fmt.Errorf("codec: cannot encode %T", ev)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encoding %s event: %w", ev.Kind(), err)
	}

	return &sse.Frame{Event: ev.Kind().String(), Data: data}, nil
}

func encodeError(e llm.ErrorEvent) (string, error) {
	data, err := sjson.Set("{}", "text", e.Text)
	if err != nil {
		return "", err
	}
	return sjson.Set(data, "allow_retry", e.AllowRetry)
}

func encodeFile(e llm.FileEvent) (string, error) {
	data, err := sjson.Set("{}", "url", e.URL)
	if err != nil {
		return "", err
	}
	if e.ContentType != "" {
		if data, err = sjson.Set(data, "content_type", e.ContentType); err != nil {
			return "", err
		}
	}
	return sjson.Set(data, "name", e.Name)
}

func encodeJSON(e llm.JSONEvent) (string, error) {
	if len(e.Raw) > 0 {
		return string(e.Raw), nil
	}

	if e.Delta != nil {
		return encodeDelta(e.Delta)
	}

	calls := e.ToolCalls
	if calls == nil {
		calls = []llm.ToolCall{}
	}
	raw, err := json.Marshal(calls)
	if err != nil {
		return "", err
	}
	return sjson.SetRaw("{}", "tool_calls", string(raw))
}

type deltaFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type deltaPart struct {
	Index    int            `json:"index"`
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Function *deltaFunction `json:"function,omitempty"`
}

type deltaChoice struct {
	Delta struct {
		ToolCalls []deltaPart `json:"tool_calls"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

func encodeDelta(d *llm.ToolCallDelta) (string, error) {
	var choice deltaChoice
	choice.FinishReason = d.FinishReason
	choice.Delta.ToolCalls = make([]deltaPart, 0, len(d.Parts))
	for _, p := range d.Parts {
		part := deltaPart{Index: p.Index, ID: p.ID, Type: p.Type}
		if p.Name != "" || p.Arguments != "" {
			part.Function = &deltaFunction{Name: p.Name, Arguments: p.Arguments}
		}
		choice.Delta.ToolCalls = append(choice.Delta.ToolCalls, part)
	}

	raw, err := json.Marshal([]deltaChoice{choice})
	if err != nil {
		return "", err
	}
	return sjson.SetRaw("{}", "choices", string(raw))
}

// WriteFrame writes f in SSE wire form, terminated by a blank line.
// Multi-line data is split across several data lines.
func WriteFrame(w io.Writer, f *sse.Frame) error {
	var b strings.Builder
	if f.ID != "" {
		b.WriteString("id: " + f.ID + "\n")
	}
	b.WriteString("event: " + f.Event + "\n")
	for _, line := range strings.Split(f.Data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteEvent encodes ev and writes it to w.
func WriteEvent(w io.Writer, ev llm.Event) error {
	f, err := Encode(ev)
	if err != nil {
		return err
	}
	return WriteFrame(w, f)
}
