package session_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/llm/codec"
)

// trackedBody counts how often the transport is closed.
type trackedBody struct {
	io.Reader
	closes atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	return nil
}

// fakeDoer answers every request with the next canned response and keeps
// what was sent.
type fakeDoer struct {
	mu        sync.Mutex
	status    int
	responses []string
	bodies    []*trackedBody
	requests  []*http.Request
	payloads  []string
	err       error
}

func newFakeDoer(responses ...string) *fakeDoer {
	return &fakeDoer{status: http.StatusOK, responses: responses}
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	d.requests = append(d.requests, req)
	d.payloads = append(d.payloads, string(payload))

	if d.err != nil {
		return nil, d.err
	}
	if len(d.responses) == 0 {
		return nil, errors.New("fake doer: no response left")
	}

	body := &trackedBody{Reader: strings.NewReader(d.responses[0])}
	d.responses = d.responses[1:]
	d.bodies = append(d.bodies, body)

	return &http.Response{
		StatusCode: d.status,
		Status:     http.StatusText(d.status),
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}, nil
}

func (d *fakeDoer) requestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *fakeDoer) closes(i int) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bodies[i].closes.Load()
}

// wire renders events the way a bot sends them.
func wire(events ...llm.Event) string {
	var b strings.Builder
	for _, ev := range events {
		if err := codec.WriteEvent(&b, ev); err != nil {
			panic(err)
		}
	}
	return b.String()
}
