package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// scriptedClient plays back canned responses and records every request.
type scriptedClient struct {
	responses []*http.Response
	requests  []*http.Request
}

func (s *scriptedClient) Do(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestFetcher(client HTTPClient) *FeedFetcher {
	f := NewFeedFetcher("test", Config{
		Timeout:        time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		BreakerTimeout: time.Second,
	}, zap.NewNop())
	f.client = client
	return f
}

func TestFetchReplaysValidatorsAndServesCacheOn304(t *testing.T) {
	stub := &scriptedClient{responses: []*http.Response{
		response(200, "<Hrvatska/>", http.Header{
			"Etag":          []string{`"v1"`},
			"Last-Modified": []string{"Sat, 01 Feb 2026 13:00:00 GMT"},
		}),
		response(304, "", nil),
	}}
	f := newTestFetcher(stub)

	body, err := f.Fetch(context.Background(), "http://feed.test")
	if err != nil {
		t.Fatalf("first Fetch() err = %v", err)
	}
	if string(body) != "<Hrvatska/>" {
		t.Fatalf("first body = %q", body)
	}
	if got := stub.requests[0].Header.Get("If-None-Match"); got != "" {
		t.Errorf("first request must carry no validators, got If-None-Match %q", got)
	}

	body, err = f.Fetch(context.Background(), "http://feed.test")
	if err != nil {
		t.Fatalf("second Fetch() err = %v", err)
	}
	if string(body) != "<Hrvatska/>" {
		t.Errorf("304 must serve the cached body, got %q", body)
	}

	second := stub.requests[1]
	if got := second.Header.Get("If-None-Match"); got != `"v1"` {
		t.Errorf("If-None-Match = %q; want the cached ETag", got)
	}
	if got := second.Header.Get("If-Modified-Since"); got != "Sat, 01 Feb 2026 13:00:00 GMT" {
		t.Errorf("If-Modified-Since = %q; want the cached Last-Modified", got)
	}
}

func TestFetchSetsFeedHeaders(t *testing.T) {
	stub := &scriptedClient{responses: []*http.Response{
		response(200, "ok", nil),
	}}
	f := newTestFetcher(stub)

	if _, err := f.Fetch(context.Background(), "http://feed.test"); err != nil {
		t.Fatalf("Fetch() err = %v", err)
	}
	req := stub.requests[0]
	if got := req.Header.Get("User-Agent"); got != userAgent {
		t.Errorf("User-Agent = %q; want %q", got, userAgent)
	}
	if got := req.Header.Get("Accept"); !strings.Contains(got, "application/xml") || !strings.Contains(got, "text/html") {
		t.Errorf("Accept = %q; must cover both feed shapes", got)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	stub := &scriptedClient{responses: []*http.Response{
		response(404, "not found", nil),
	}}
	f := newTestFetcher(stub)

	if _, err := f.Fetch(context.Background(), "http://feed.test"); err == nil {
		t.Fatal("Fetch() must fail on 404")
	}
	if len(stub.requests) != 1 {
		t.Errorf("requests = %d; 4xx must not be retried", len(stub.requests))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	stub := &scriptedClient{responses: []*http.Response{
		response(500, "boom", nil),
		response(200, "recovered", nil),
	}}
	f := newTestFetcher(stub)

	body, err := f.Fetch(context.Background(), "http://feed.test")
	if err != nil {
		t.Fatalf("Fetch() err = %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q; want the retried response", body)
	}
	if len(stub.requests) != 2 {
		t.Errorf("requests = %d; want 2", len(stub.requests))
	}
}
