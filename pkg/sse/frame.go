// Package sse reassembles Server-Sent Events frames from a bot's response
// stream. Input may arrive in arbitrarily fragmented chunks; frames are only
// yielded once their terminating blank line (or EOF) has been read.
//
// Writing frames lives in pkg/llm/codec.
//
// Field rules follow
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "fmt"

// Frame represents a single SSE frame, delimited by a blank line in the
// upstream byte stream.
type Frame struct {
	// Event is the value of the "event:" field. The bot protocol requires
	// it on every frame that carries data.
	Event string

	// Data is the contents of all "data:" lines of the frame joined with
	// "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// FramingError reports a frame that carried data but no event name. It is
// not fatal: the frame is skipped and the Reader stays usable.
type FramingError struct {
	Data string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("sse: frame without event name (data %q)", e.Data)
}
