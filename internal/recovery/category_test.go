package recovery

import (
	"errors"
	"testing"
)

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want Category
	}{
		{"CORS policy blocked the request", CategoryCORS},
		{"blocked by Access-Control-Allow-Origin", CategoryCORS},
		{"cross-origin request denied", CategoryCORS},
		{"dial timeout exceeded", CategoryTimeout},
		{"request timed out after 10s", CategoryTimeout},
		{"context deadline exceeded", CategoryTimeout},
		{"websocket: bad handshake", CategoryTransport},
		{"transport closed unexpectedly", CategoryTransport},
		{"polling session expired", CategoryTransport},
		{"unauthorized: missing credentials", CategoryAuth},
		{"HTTP 403 Forbidden", CategoryAuth},
		{"authentication required", CategoryAuth},
		{"rate limit exceeded", CategoryRateLimit},
		{"429 Too Many Requests", CategoryRateLimit},
		{"internal server error", CategoryServer},
		{"502 Bad Gateway", CategoryServer},
		{"connection refused", CategoryNetwork},
		{"host unreachable", CategoryNetwork},
		{"dns lookup failed", CategoryNetwork},
		{"something else entirely", CategoryUnknown},
		{"", CategoryUnknown},
	}

	for _, tc := range cases {
		if got := ClassifyMessage(tc.msg); got != tc.want {
			t.Errorf("ClassifyMessage(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestClassifyMessageCaseInsensitive(t *testing.T) {
	if got := ClassifyMessage("CONNECTION REFUSED"); got != CategoryNetwork {
		t.Errorf("uppercase message classified as %q, want %q", got, CategoryNetwork)
	}
	if got := ClassifyMessage("Timed Out"); got != CategoryTimeout {
		t.Errorf("mixed-case message classified as %q, want %q", got, CategoryTimeout)
	}
}

// Priority order is part of the contract: an earlier category wins even when
// a later one also matches.
func TestClassifyMessagePriority(t *testing.T) {
	cases := []struct {
		msg  string
		want Category
	}{
		// cors beats network
		{"cors error on network request", CategoryCORS},
		// timeout beats network
		{"network timeout", CategoryTimeout},
		// transport beats network
		{"websocket connection reset", CategoryTransport},
		// timeout beats transport
		{"websocket handshake timeout", CategoryTimeout},
		// auth beats server
		{"server returned 401", CategoryAuth},
	}

	for _, tc := range cases {
		if got := ClassifyMessage(tc.msg); got != tc.want {
			t.Errorf("ClassifyMessage(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(nil); got != CategoryUnknown {
		t.Errorf("Classify(nil) = %q, want %q", got, CategoryUnknown)
	}
	if got := Classify(errors.New("connection reset by peer")); got != CategoryNetwork {
		t.Errorf("Classify = %q, want %q", got, CategoryNetwork)
	}
}
