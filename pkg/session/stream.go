package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/llm/codec"
	"github.com/papercomputeco/botstream/pkg/sse"
	"github.com/papercomputeco/botstream/pkg/toolcall"
	"github.com/papercomputeco/botstream/pkg/xmltool"
)

type streamConfig struct {
	adapter  *xmltool.Adapter
	logger   *slog.Logger
	recorder io.Writer
}

// Stream is the reply of one turn. Events are produced lazily: the
// transport is only read from inside Next. A Stream is not safe for
// concurrent use.
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	reader  *sse.Reader
	acc     *toolcall.Accumulator
	adapter *xmltool.Adapter
	logger  *slog.Logger

	pending   []llm.Event
	toolCalls []llm.ToolCall
	done      bool
	err       error

	closeOnce sync.Once
	closeErr  error
	closed    bool
	stop      func() bool
}

func newStream(ctx context.Context, body io.ReadCloser, cfg streamConfig) *Stream {
	var opts []sse.ReaderOption
	if cfg.recorder != nil {
		opts = append(opts, sse.WithTee(cfg.recorder))
	}

	s := &Stream{
		ctx:     ctx,
		body:    body,
		reader:  sse.NewReader(body, opts...),
		acc:     toolcall.NewAccumulator(cfg.logger),
		adapter: cfg.adapter,
		logger:  cfg.logger,
	}

	// Cancelling the turn's context releases the connection even when
	// nobody is blocked in Next.
	s.stop = context.AfterFunc(ctx, func() {
		_ = s.closeBody()
	})
	return s
}

// Next returns the next event of the turn. After done it returns io.EOF.
// Frames that cannot be decoded are logged and skipped. A transport that
// ends before done yields an error wrapping ErrTransportTerminated. Every
// error is final and leaves the transport closed.
func (s *Stream) Next() (llm.Event, error) {
	for {
		if s.closed && !s.done && s.err == nil {
			return nil, ErrStreamClosed
		}

		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.observe(ev)
			return ev, nil
		}

		switch {
		case s.done:
			return nil, io.EOF
		case s.err != nil:
			return nil, s.err
		}

		frame, err := s.reader.Next()
		if err != nil {
			var framing *sse.FramingError
			if errors.As(err, &framing) {
				s.logger.Debug("skipping frame without event name", "data", framing.Data)
				continue
			}
			s.terminate(err)
			continue
		}

		ev, err := codec.Decode(frame)
		switch {
		case errors.Is(err, codec.ErrKeepAlive):
			s.logger.Debug("keep-alive", "event", frame.Event)
			continue
		case err != nil:
			s.logger.Debug("skipping undecodable frame", "event", frame.Event, "error", err)
			continue
		}

		s.pending = append(s.pending, s.transform(ev)...)
	}
}

// transform runs ev through delta accumulation and, when enabled, XML
// tool-call detection.
func (s *Stream) transform(ev llm.Event) []llm.Event {
	events := s.acc.Push(ev)
	if s.adapter == nil {
		return events
	}

	var out []llm.Event
	for _, e := range events {
		out = append(out, s.adapter.Push(e)...)
	}
	return out
}

func (s *Stream) observe(ev llm.Event) {
	switch e := ev.(type) {
	case llm.JSONEvent:
		s.toolCalls = append(s.toolCalls, e.ToolCalls...)
	case llm.DoneEvent:
		s.done = true
		s.pending = nil
		_ = s.Close()
	}
}

// terminate records the final error for a failed read and closes the
// transport. Text the XML adapter still holds is surfaced first.
func (s *Stream) terminate(readErr error) {
	switch {
	case s.ctx.Err() != nil:
		s.err = fmt.Errorf("reading event stream: %w", s.ctx.Err())
	case errors.Is(readErr, io.EOF):
		s.err = fmt.Errorf("bot stream: %w", ErrTransportTerminated)
	default:
		s.err = fmt.Errorf("reading event stream: %w", readErr)
	}

	if s.adapter != nil {
		s.pending = append(s.pending, s.adapter.Flush()...)
	}

	s.logger.Debug("event stream ended without done", "error", s.err)
	_ = s.Close()
}

// ToolCalls returns the tool calls surfaced so far in this turn.
func (s *Stream) ToolCalls() []llm.ToolCall {
	return append([]llm.ToolCall(nil), s.toolCalls...)
}

// Done reports whether the turn completed with a done event.
func (s *Stream) Done() bool {
	return s.done
}

// Close releases the transport. It is safe to call more than once; the
// transport is closed exactly once.
func (s *Stream) Close() error {
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
	return s.closeBody()
}

func (s *Stream) closeBody() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Events ranges over the turn. The sequence ends after done; an error is
// yielded once as the last element. Leaving the loop early closes the
// stream.
func (s *Stream) Events() iter.Seq2[llm.Event, error] {
	return func(yield func(llm.Event, error) bool) {
		defer s.Close()
		for {
			ev, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
