package sse

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
)

// Reader reads SSE frames from a source io.Reader. When configured with
// WithTee it also writes all raw bytes verbatim to a destination io.Writer,
// which the chat command uses to record a turn's stream to disk.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌────────────────────────────┐
// │  Reader.Next()   │──▶│ tee io.Writer (optional)   │
// └──────────────────┘   └────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Reader is not safe for concurrent use; a turn has exactly one consumer.
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer

	// current accumulates fields for the frame being built in the current scan.
	current  *Frame
	hasEvent bool
	hasData  bool
	done     bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTee copies every raw line (including its newline) to w as it is read.
func WithTee(w io.Writer) ReaderOption {
	return func(r *Reader) {
		r.tee = w
	}
}

// NewReader returns a Reader that parses SSE frames from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)

	r := &Reader{
		scanner: scanner,
		current: &Frame{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the next complete frame. It blocks until a frame terminator
// (a blank line) is read or the source is exhausted, and never reads further
// ahead than that.
//
// Next returns nil, io.EOF once the source is exhausted. A frame carrying data
// without an event name yields a *FramingError; callers may keep calling Next.
func (r *Reader) Next() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.tee != nil {
			// bufio.Scanner strips the newline from Scan() so we reinsert it here.
			if _, err := io.WriteString(r.tee, raw+"\n"); err != nil {
				return nil, err
			}
		}

		// A blank line signals the end of the current frame.
		if raw == "" {
			if f, err := r.flush(); f != nil || err != nil {
				return f, err
			}
			continue
		}

		// Lines starting with ':' are comments, e.g. ": ping" keep-alives.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Source exhausted. If there is an in-progress frame (stream ended
	// without a trailing blank line), yield it.
	if f, err := r.flush(); f != nil || err != nil {
		return f, err
	}

	return nil, io.EOF
}

// Frames returns an iterator over the remaining frames. Iteration stops at
// io.EOF; framing errors are yielded and iteration continues, other errors
// are yielded once and end the sequence.
func (r *Reader) Frames() iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		for {
			f, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(f, err) {
				return
			}

			var fe *FramingError
			if err != nil && !errors.As(err, &fe) {
				return
			}
		}
	}
}

// flush hands out the accumulated frame and resets state for the next one.
// It returns nil, nil when there is nothing to hand out: blank lines, frames
// carrying only an id, and "data:" keep-alives without an event name.
func (r *Reader) flush() (*Frame, error) {
	f := r.current
	hasEvent := r.hasEvent
	r.reset()

	if !hasEvent {
		if f.Data == "" {
			return nil, nil
		}
		return nil, &FramingError{Data: f.Data}
	}
	return f, nil
}

// parseLine processes a single non-empty, non-comment SSE line and
// accumulates the field into the current frame.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (r *Reader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		// Strip a single leading space after the colon.
		value = strings.TrimPrefix(after, " ")
	} else {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		field = line
	}

	switch field {
	case "data":
		if r.hasData {
			// Multiple data fields are joined with "\n".
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Event = strings.TrimSpace(value)
		r.hasEvent = r.current.Event != ""
	case "id":
		r.current.ID = value
	default:
		// * "retry" is intentionally ignored: reconnection is the caller's call.
		// * Other unknown fields are ignored per the SSE spec.
	}
}

// reset clears the accumulated frame state for the next frame.
func (r *Reader) reset() {
	r.current = &Frame{}
	r.hasEvent = false
	r.hasData = false
}
