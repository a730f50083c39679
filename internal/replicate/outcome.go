package replicate

import "posmirror/internal/event"

// Status is the terminal result of handling one change event. Outcomes feed
// logs and metrics only; nothing is retried or re-queued.
type Status string

const (
	StatusApplied          Status = "applied"
	StatusSkippedDuplicate Status = "skipped_duplicate"
	StatusFallbackApplied  Status = "fallback_applied"
	StatusFailed           Status = "failed"
)

// ErrorKind classifies the stage at which an event failed.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindConfig           ErrorKind = "config"
	KindDecode           ErrorKind = "decode"
	KindIdempotencyCheck ErrorKind = "idempotency_check"
	KindWrite            ErrorKind = "write"
	KindFallbackWrite    ErrorKind = "fallback_write"
	KindDelete           ErrorKind = "delete"
)

// Outcome is the structured per-event result the dispatcher reports.
type Outcome struct {
	Entity  event.Type
	Key     string
	Kind    event.Kind
	Status  Status
	ErrKind ErrorKind
	Err     error
}

func (o Outcome) Failed() bool { return o.Status == StatusFailed }
