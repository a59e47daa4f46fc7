// Package notification delivers user-facing messages over registered
// channels with a deterministic fallback to a retry queue.
package notification

import "context"

// Channel is one delivery transport (email, sms). Send returns a
// provider-assigned message id on success.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// Message is a channel-agnostic notification payload.
type Message struct {
	CorrelationID string            `json:"correlation_id"`
	Recipient     string            `json:"recipient"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Recipient carries the addressing details a dispatcher needs. ProfileName
// is optional; when empty a greeting name is derived from the address.
type Recipient struct {
	Email       string
	Phone       string
	ProfileName string
}

// Preferences selects which channels may be attempted and which goes first.
type Preferences struct {
	PreferredChannel string
	EmailEnabled     bool
	SMSEnabled       bool
}

// Enabled reports whether the named channel may be attempted.
func (p Preferences) Enabled(name string) bool {
	switch name {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	default:
		return false
	}
}

// DefaultPreferences enables email only, the baseline for new users.
func DefaultPreferences() Preferences {
	return Preferences{PreferredChannel: ChannelEmail, EmailEnabled: true}
}

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery outcomes carried in Result.Message.
const (
	OutcomeSent   = "sent"
	OutcomeQueued = "queued"
	OutcomeFailed = "delivery failed"
)

// Result is the dispatcher's terminal outcome. Delivered is true only when
// a channel accepted the message; queued and failed deliveries report the
// placeholder id "-".
type Result struct {
	ID        string `json:"id"`
	Delivered bool   `json:"delivered"`
	Message   string `json:"message"`
}

func deliveredResult(id string) Result {
	return Result{ID: id, Delivered: true, Message: OutcomeSent}
}

func queuedResult() Result {
	return Result{ID: "-", Delivered: false, Message: OutcomeQueued}
}

func failedResult() Result {
	return Result{ID: "-", Delivered: false, Message: OutcomeFailed}
}
