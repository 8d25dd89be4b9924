package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrKeepAlive marks a named frame with an empty payload. It is not a
	// decode failure: callers skip it.
	ErrKeepAlive = errors.New("keep-alive frame")

	// ErrNilFrame is returned when Decode is handed a nil frame.
	ErrNilFrame = errors.New("nil frame")

	// ErrUnknownEvent matches (via errors.Is) every DecodeError whose event
	// name is not part of the protocol.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrMalformedPayload matches (via errors.Is) every DecodeError whose
	// payload does not fit its kind's schema.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Reason classifies a DecodeError.
type Reason uint8

const (
	ReasonUnknownEvent Reason = iota + 1
	ReasonMalformedPayload
)

// DecodeError reports a frame that could not be turned into an event. The
// session logs and skips these; the stream keeps going.
type DecodeError struct {
	Reason Reason
	Event  string
	Data   string
	Err    error
}

func (e *DecodeError) Error() string {
	switch e.Reason {
	case ReasonUnknownEvent:
		return fmt.Sprintf("codec: unknown event %q", e.Event)
	default:
		if e.Err != nil {
			return fmt.Sprintf("codec: malformed %s payload: %v", e.Event, e.Err)
		}
		return fmt.Sprintf("codec: malformed %s payload", e.Event)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the reason sentinels.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrUnknownEvent:
		return e.Reason == ReasonUnknownEvent
	case ErrMalformedPayload:
		return e.Reason == ReasonMalformedPayload
	}
	return false
}

func malformed(event, data string, format string, args ...any) *DecodeError {
	return &DecodeError{
		Reason: ReasonMalformedPayload,
		Event:  event,
		Data:   data,
		Err:    fmt.Errorf(format, args...),
	}
}
