// Package recovery implements the connection-recovery state machine of the
// Vedfolnir bridge: it classifies transport failures, schedules retries with
// jittered exponential backoff, falls back to more tolerant transports, and
// detects host suspension. It drives a transport.Client and surfaces every
// outcome as a lifecycle event — it never returns transport errors to callers.
package recovery

import "strings"

// Category is the failure class assigned to a connection error. The
// orchestrator reasons about these eight categories only; anything
// unclassifiable collapses to CategoryUnknown.
type Category string

const (
	CategoryCORS      Category = "cors"
	CategoryTimeout   Category = "timeout"
	CategoryTransport Category = "transport"
	CategoryAuth      Category = "auth"
	CategoryRateLimit Category = "rate_limit"
	CategoryServer    Category = "server"
	CategoryNetwork   Category = "network"
	CategoryUnknown   Category = "unknown"
)

// categoryPatterns is evaluated in order; the first category whose pattern
// matches wins. Order is part of the contract: a message matching both
// "cors" and "network" classifies as cors.
var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryCORS, []string{"cors", "cross-origin", "access-control"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryTransport, []string{"transport", "websocket", "polling", "handshake"}},
	{CategoryAuth, []string{"auth", "unauthorized", "forbidden", "401", "403"}},
	{CategoryRateLimit, []string{"rate limit", "too many requests", "429"}},
	{CategoryServer, []string{"server error", "internal server", "bad gateway", "500", "502", "503"}},
	{CategoryNetwork, []string{"network", "connection refused", "connection reset", "unreachable", "offline", "dns", "no route"}},
}

// Classify assigns a category to a connection error based on its message.
// A nil error classifies as unknown.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage assigns a category to a raw error message using
// case-insensitive substring matching in fixed priority order.
func ClassifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, entry := range categoryPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lower, pattern) {
				return entry.category
			}
		}
	}
	return CategoryUnknown
}
