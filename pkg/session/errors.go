package session

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportTerminated is returned by Stream.Next when the connection
	// ends before the bot sent done.
	ErrTransportTerminated = errors.New("transport terminated before done")

	// ErrStreamClosed is returned by Stream.Next after Close.
	ErrStreamClosed = errors.New("stream closed")

	// ErrMissingBot is returned by New without a bot name.
	ErrMissingBot = errors.New("bot name is required")

	// ErrMissingAccessKey is returned by New without an access key.
	ErrMissingAccessKey = errors.New("access key is required")
)

// StatusError reports a non-2xx response to a turn request. Body holds the
// start of the response body.
type StatusError struct {
	Bot        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bot %s returned %s", e.Bot, e.Status)
	}
	return fmt.Sprintf("bot %s returned %s: %s", e.Bot, e.Status, e.Body)
}
