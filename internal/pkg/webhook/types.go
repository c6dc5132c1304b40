package webhook

import "time"

// Outbound wire format headers
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderID        = "X-Webhook-Id"
	HeaderEvent     = "X-Webhook-Event"

	defaultUserAgent = "CauseKit-Webhooks/1.0"
)

// Event is the JSON body posted to subscribed endpoints. One event is built
// per trigger and the same id is delivered to every subscribed endpoint.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Data      EventData `json:"data"`
}

// EventData wraps the affected object and, for update events, the previous
// attribute values.
type EventData struct {
	Object             interface{} `json:"object"`
	PreviousAttributes interface{} `json:"previousAttributes,omitempty"`
}

// Config holds webhook dispatcher settings. Built once at process start and
// injected, so tests can substitute fakes.
type Config struct {
	// Timeout bounds a single delivery attempt
	Timeout time.Duration

	// MaxAttempts is the terminal attempt count
	MaxAttempts int

	// ResponseBodyLimit truncates stored response bodies
	ResponseBodyLimit int

	// UserAgent sent on outbound requests
	UserAgent string

	// CountersEnabled toggles the Redis delivery counters
	CountersEnabled bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		MaxAttempts:       5,
		ResponseBodyLimit: 4096,
		UserAgent:         defaultUserAgent,
		CountersEnabled:   true,
	}
}

// retrySchedule is the fixed backoff ladder; the last value repeats when the
// attempt count exceeds the schedule length.
var retrySchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
	7200 * time.Second,
}

// RetryDelay returns the wait before the next attempt after `attempts`
// failed attempts (1-based).
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(retrySchedule) {
		return retrySchedule[len(retrySchedule)-1]
	}
	return retrySchedule[attempts-1]
}

// TestResult is the synchronous outcome of a test delivery. Nothing is
// persisted for test sends.
type TestResult struct {
	Success    bool   `json:"success"`
	Status     int    `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
