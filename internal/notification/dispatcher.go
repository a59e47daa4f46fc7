package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"usergate/internal/notification/metrics"
	dErrors "usergate/pkg/domain-errors"
	"usergate/pkg/email"
)

const defaultSendTimeout = 3 * time.Second

// Metric labels for terminal outcomes. OutcomeFailed carries a
// human-readable message, so the counter uses a compact label instead.
const (
	deliveryLabelSent   = "sent"
	deliveryLabelQueued = "queued"
	deliveryLabelFailed = "failed"
)

// Dispatcher attempts delivery over the recipient's channels in a fixed
// order and falls back to the retry queue when every attempt fails. Its
// methods never return an error; the outcome is always a Result.
type Dispatcher struct {
	channels    map[string]Channel
	order       []string
	queue       Queue
	sendTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithSendTimeout bounds each individual channel attempt.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

func New(queue Queue, channels []Channel, opts ...Option) (*Dispatcher, error) {
	if queue == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "retry queue is required")
	}
	if len(channels) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one channel is required")
	}

	d := &Dispatcher{
		channels:    make(map[string]Channel, len(channels)),
		queue:       queue,
		sendTimeout: defaultSendTimeout,
		logger:      slog.Default(),
	}
	for _, ch := range channels {
		if _, dup := d.channels[ch.Name()]; dup {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate channel %q", ch.Name())
		}
		d.channels[ch.Name()] = ch
		d.order = append(d.order, ch.Name())
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SendWelcome greets a newly created user. The greeting name falls back to
// one derived from the address when no profile name is set.
func (d *Dispatcher) SendWelcome(ctx context.Context, correlationID string, rcpt Recipient, prefs Preferences) Result {
	name := email.DisplayName(rcpt.ProfileName, rcpt.Email)
	msg := Message{
		CorrelationID: correlationID,
		Recipient:     rcpt.Email,
		Subject:       "Welcome aboard",
		Body:          fmt.Sprintf("Hello %s, your account is ready.", name),
		Metadata:      recipientMetadata(rcpt),
	}
	return d.dispatch(ctx, msg, prefs)
}

// SendStatusUpdate informs a user their account status changed. Extra
// metadata rides along for channel templating.
func (d *Dispatcher) SendStatusUpdate(ctx context.Context, correlationID string, rcpt Recipient, status string, extra map[string]string, prefs Preferences) Result {
	name := email.DisplayName(rcpt.ProfileName, rcpt.Email)
	md := recipientMetadata(rcpt)
	for k, v := range extra {
		md[k] = v
	}
	md["status"] = status

	msg := Message{
		CorrelationID: correlationID,
		Recipient:     rcpt.Email,
		Subject:       "Account status updated",
		Body:          fmt.Sprintf("Hello %s, your account status is now %s.", name, status),
		Metadata:      md,
	}
	return d.dispatch(ctx, msg, prefs)
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message, prefs Preferences) Result {
	for _, ch := range d.attemptOrder(prefs) {
		id, err := d.attempt(ctx, ch, msg)
		if err == nil {
			d.metrics.RecordDelivery(deliveryLabelSent)
			return deliveredResult(id)
		}
		d.logger.Warn("notification channel attempt failed",
			"channel", ch.Name(),
			"correlation_id", msg.CorrelationID,
			"error", err,
		)
	}

	// The enqueue runs detached so a caller cancellation that already
	// doomed the send attempts cannot also doom the fallback.
	if err := d.queue.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
		d.logger.Error("notification retry enqueue failed",
			"correlation_id", msg.CorrelationID,
			"error", err,
		)
		d.metrics.RecordDelivery(deliveryLabelFailed)
		return failedResult()
	}

	d.metrics.RecordDelivery(deliveryLabelQueued)
	return queuedResult()
}

// attemptOrder returns the channels to try: the preferred one first, then
// the remaining registered channels in registration order. Disabled or
// unregistered channels are skipped.
func (d *Dispatcher) attemptOrder(prefs Preferences) []Channel {
	out := make([]Channel, 0, len(d.order))
	if ch, ok := d.channels[prefs.PreferredChannel]; ok && prefs.Enabled(prefs.PreferredChannel) {
		out = append(out, ch)
	}
	for _, name := range d.order {
		if name == prefs.PreferredChannel {
			continue
		}
		if prefs.Enabled(name) {
			out = append(out, d.channels[name])
		}
	}
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, ch Channel, msg Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	id, err := ch.Send(attemptCtx, msg)
	d.metrics.ObserveSend(time.Since(start))
	if err != nil {
		d.metrics.RecordAttempt(ch.Name(), "error")
		return "", err
	}
	d.metrics.RecordAttempt(ch.Name(), "ok")
	return id, nil
}

func recipientMetadata(rcpt Recipient) map[string]string {
	md := make(map[string]string)
	if rcpt.Phone != "" {
		md["phone"] = rcpt.Phone
	}
	return md
}
