package audit

import (
	"time"

	dErrors "usergate/pkg/domain-errors"
)

// Source identifies where an audited action entered the system.
type Source string

const (
	SourceAPI     Source = "API"
	SourceWebhook Source = "WEBHOOK"
	SourceSystem  Source = "SYSTEM"
	SourceUnknown Source = "UNKNOWN"
)

// ParseSource maps a string onto a known source, defaulting to UNKNOWN.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceAPI, SourceWebhook, SourceSystem:
		return Source(s)
	}
	return SourceUnknown
}

// Event is an immutable record of "this action happened to this subject".
// Construct through NewEvent so the invariants hold.
type Event struct {
	CorrelationID string
	Action        string
	Subject       string
	Context       map[string]any
	Timestamp     time.Time
	Source        Source
}

// NewEvent validates and builds an audit event. CorrelationID, action, and
// subject must be non-empty; a nil context is normalized to an empty map.
// Validation failure is the only error the audit path ever surfaces.
func NewEvent(correlationID, action, subject string, contextData map[string]any, source Source) (Event, error) {
	if correlationID == "" {
		return Event{}, dErrors.New(dErrors.CodeInvalidInput, "correlation id cannot be empty")
	}
	if action == "" {
		return Event{}, dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	if subject == "" {
		return Event{}, dErrors.New(dErrors.CodeInvalidInput, "subject cannot be empty")
	}
	if contextData == nil {
		contextData = map[string]any{}
	}
	return Event{
		CorrelationID: correlationID,
		Action:        action,
		Subject:       subject,
		Context:       contextData,
		Timestamp:     time.Now(),
		Source:        source,
	}, nil
}

// Status classifies the terminal outcome of one audited event.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
	StatusFallback   Status = "FALLBACK"
	StatusProcessing Status = "PROCESSING"
	StatusUnknown    Status = "UNKNOWN"
)

// Result is the per-event outcome produced exactly once by the pipeline.
type Result struct {
	ID            string
	Status        Status
	Message       string
	Timestamp     time.Time
	CorrelationID string
}

// NewResult builds a result, applying the documented defaults for absent
// fields: id "-", status UNKNOWN, message "No message provided".
func NewResult(id string, status Status, message, correlationID string) Result {
	if id == "" {
		id = "-"
	}
	if status == "" {
		status = StatusUnknown
	}
	if message == "" {
		message = "No message provided"
	}
	return Result{
		ID:            id,
		Status:        status,
		Message:       message,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// IsSuccess reports a successful audit write. "OK" is accepted as a legacy
// alias for SUCCESS from older sink payloads.
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess || r.Status == "OK"
}

// IsFailure reports a failed audit write. "ERROR" is a legacy alias.
func (r Result) IsFailure() bool {
	return r.Status == StatusFailure || r.Status == "ERROR"
}

// IsFallback reports a degraded-but-safe outcome: the action was honored but
// not audited through the primary path.
func (r Result) IsFallback() bool {
	return r.Status == StatusFallback
}
