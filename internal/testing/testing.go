// package testing contains shared testing utilities
package testing

import (
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// Exchange is one scripted request/response pair for [SequencedRoundTripper].
type Exchange struct {
	Status int
	Body   string
	Err    error
}

// SequencedRoundTripper replays a fixed list of exchanges in order and
// records every request it sees. Requests past the end of the script
// repeat the final exchange.
type SequencedRoundTripper struct {
	exchanges []Exchange
	Requests  []*http.Request
}

func NewSequencedRoundTripper(exchanges ...Exchange) *SequencedRoundTripper {
	return &SequencedRoundTripper{exchanges: exchanges}
}

func (s *SequencedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.Requests = append(s.Requests, req)

	idx := len(s.Requests) - 1
	if idx >= len(s.exchanges) {
		idx = len(s.exchanges) - 1
	}

	ex := s.exchanges[idx]
	if ex.Err != nil {
		return nil, ex.Err
	}

	return &http.Response{
		StatusCode: ex.Status,
		Body:       io.NopCloser(strings.NewReader(ex.Body)),
		Header:     make(http.Header),
	}, nil
}

// Calls reports how many requests the transport has served.
func (s *SequencedRoundTripper) Calls() int {
	return len(s.Requests)
}

// TextResponse builds a 200 response with the given body.
func TextResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileAbsent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
