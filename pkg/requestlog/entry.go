package requestlog

import (
	"time"

	"github.com/commerce-it/mockserver/pkg/registry"
)

// MaxBodyLen is the number of body bytes kept per entry.
const MaxBodyLen = 10 * 1024

// Entry captures one request and the response it received.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// Scheme is http or https.
	Scheme string `json:"scheme"`

	Method      string              `json:"method"`
	Path        string              `json:"path"`
	QueryString string              `json:"queryString,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`

	// Body is the request body content (truncated past MaxBodyLen).
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	RemoteAddr string `json:"remoteAddr"`

	// MatchedRuleID is the ID of the rule that matched (empty if no match).
	MatchedRuleID string `json:"matchedRuleId,omitempty"`
	MatchedRule   string `json:"matchedRule,omitempty"`

	// Status is the status code returned.
	Status int `json:"status"`

	// DurationMs is the request processing time in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// Error contains the error message if rendering the response failed.
	Error string `json:"error,omitempty"`

	// NearMisses explains why each rule rejected an unmatched request.
	NearMisses []registry.NearMiss `json:"nearMisses,omitempty"`
}

// Matched reports whether a rule handled the request.
func (e *Entry) Matched() bool {
	return e.MatchedRuleID != ""
}

// SetBody stores body, truncating it to MaxBodyLen.
func (e *Entry) SetBody(body []byte) {
	e.BodySize = len(body)
	if len(body) > MaxBodyLen {
		body = body[:MaxBodyLen]
	}
	e.Body = string(body)
}
