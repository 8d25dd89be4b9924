package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/botstream/pkg/llm"
)

// GetTimeTool reports the current time, optionally in an IANA time zone.
var GetTimeTool = llm.NewFunctionTool("get_time", "Get the current date and time", &llm.FunctionParameters{
	Type:       "object",
	Properties: json.RawMessage(`{"timezone":{"type":"string","description":"IANA time zone name, for example Asia/Taipei. Defaults to UTC."}}`),
})

// EchoTool returns its text argument unchanged.
var EchoTool = llm.NewFunctionTool("echo", "Repeat the given text back", &llm.FunctionParameters{
	Type:       "object",
	Properties: json.RawMessage(`{"text":{"type":"string","description":"Text to repeat"}}`),
	Required:   []string{"text"},
})

// GetTime builds the get_time implementation on top of now.
func GetTime(now func() time.Time) Func {
	return func(_ context.Context, args json.RawMessage) (string, error) {
		loc := time.UTC
		if tz := gjson.GetBytes(args, "timezone").String(); tz != "" {
			l, err := time.LoadLocation(tz)
			if err != nil {
				return "", fmt.Errorf("unknown timezone %q", tz)
			}
			loc = l
		}
		return now().In(loc).Format(time.RFC3339), nil
	}
}

// Echo is the echo implementation.
func Echo(_ context.Context, args json.RawMessage) (string, error) {
	text := gjson.GetBytes(args, "text")
	if !text.Exists() {
		return "", errors.New("missing text argument")
	}
	return text.String(), nil
}

// NewBuiltinRegistry returns a registry holding get_time and echo.
func NewBuiltinRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	r := NewRegistry()
	// Names are distinct, so registration cannot fail.
	_ = r.Register(GetTimeTool, GetTime(now))
	_ = r.Register(EchoTool, Echo)
	return r
}
