package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeDevice is an in-memory HiLink web server.
type fakeDevice struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	bodies   map[string][]string
	headers  map[string][]http.Header
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	t.Helper()

	d := &fakeDevice{
		handlers: map[string]http.HandlerFunc{},
		hits:     map[string]int{},
		bodies:   map[string][]string{},
		headers:  map[string][]http.Header{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		d.mu.Lock()
		d.hits[r.URL.Path]++
		d.bodies[r.URL.Path] = append(d.bodies[r.URL.Path], string(body))
		d.headers[r.URL.Path] = append(d.headers[r.URL.Path], r.Header.Clone())
		h, ok := d.handlers[r.URL.Path]
		d.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDevice) handle(path string, h http.HandlerFunc) {
	d.mu.Lock()
	d.handlers[path] = h
	d.mu.Unlock()
}

// reply registers a handler answering path with a fixed XML body.
func (d *fakeDevice) reply(path, body string) {
	d.handle(path, xmlHandler(body, nil))
}

func (d *fakeDevice) count(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[path]
}

func (d *fakeDevice) lastBody(path string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	bodies := d.bodies[path]
	if len(bodies) == 0 {
		return ""
	}
	return bodies[len(bodies)-1]
}

func (d *fakeDevice) lastHeader(path string) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	headers := d.headers[path]
	if len(headers) == 0 {
		return http.Header{}
	}
	return headers[len(headers)-1]
}

func xmlHandler(body string, header map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+body)
	}
}

func sesTokInfo(session, token string) string {
	return fmt.Sprintf("<response><SesInfo>%s</SesInfo><TokInfo>%s</TokInfo></response>", session, token)
}

func stateLogin(state, passwordType string) string {
	return fmt.Sprintf("<response><State>%s</State><Username></Username><password_type>%s</password_type></response>", state, passwordType)
}

func newTestClient(t *testing.T, url string, opts ...func(*Options)) *Client {
	t.Helper()

	o := &Options{
		Host: url,
		Auth: "admin:admin",
	}
	for _, fn := range opts {
		fn(o)
	}
	c, err := NewClient(o)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// stubRequester records request bodies and answers from a path table.
type stubRequester struct {
	mu      sync.Mutex
	answers map[string]stubAnswer
	calls   map[string][]any
}

type stubAnswer struct {
	xml string
	err error
}

func newStubRequester() *stubRequester {
	return &stubRequester{
		answers: map[string]stubAnswer{},
		calls:   map[string][]any{},
	}
}

func (s *stubRequester) on(path, xml string) {
	s.answers[path] = stubAnswer{xml: xml}
}

func (s *stubRequester) fail(path string, err error) {
	s.answers[path] = stubAnswer{err: err}
}

func (s *stubRequester) Request(_ context.Context, path string, body any) (Tree, error) {
	s.mu.Lock()
	s.calls[path] = append(s.calls[path], body)
	answer, ok := s.answers[path]
	s.mu.Unlock()

	if !ok {
		return nil, &TransportError{Op: "POST", URL: path, Status: http.StatusNotFound}
	}
	if answer.err != nil {
		return nil, answer.err
	}
	tree, err := Decode([]byte(answer.xml))
	if err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	return tree, nil
}

func (s *stubRequester) last(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := s.calls[path]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}
