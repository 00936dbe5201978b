// Package testutil holds test doubles shared by the provider's consumers.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
)

// StubBackend is an in-memory backend.Backend. Flags and Payloads are read
// by key; every flag query and captured event is recorded.
type StubBackend struct {
	Flags    map[string]any
	Payloads map[string]any
	// FlagErr, when set, is returned by every GetFlag call.
	FlagErr error

	mu      sync.Mutex
	queries []backend.FlagQuery
	events  []backend.Event
	closed  int
}

var _ backend.Backend = (*StubBackend)(nil)

// NewStubBackend creates a StubBackend serving flags and payloads.
func NewStubBackend(flags, payloads map[string]any) *StubBackend {
	return &StubBackend{Flags: flags, Payloads: payloads}
}

func (s *StubBackend) GetFlag(_ context.Context, q backend.FlagQuery) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.FlagErr != nil {
		return nil, s.FlagErr
	}
	return s.Flags[q.Key], nil
}

func (s *StubBackend) GetPayload(_ context.Context, q backend.PayloadQuery) (any, error) {
	return s.Payloads[q.Key], nil
}

func (s *StubBackend) Capture(_ context.Context, e backend.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *StubBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Queries returns a copy of the flag queries seen so far.
func (s *StubBackend) Queries() []backend.FlagQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.FlagQuery(nil), s.queries...)
}

// LastQuery returns the most recent flag query, or the zero value.
func (s *StubBackend) LastQuery() backend.FlagQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return backend.FlagQuery{}
	}
	return s.queries[len(s.queries)-1]
}

// Events returns a copy of the captured events.
func (s *StubBackend) Events() []backend.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Event(nil), s.events...)
}

// Closed reports how many times Close was called.
func (s *StubBackend) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
