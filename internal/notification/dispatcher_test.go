package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	name string
	id   string
	err  error

	// sendFn, when set, overrides the canned response.
	sendFn func(ctx context.Context, msg Message) (string, error)

	mu    sync.Mutex
	calls int
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(ctx context.Context, msg Message) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.sendFn != nil {
		return c.sendFn(ctx, msg)
	}
	return c.id, c.err
}

func (c *stubChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type memoryQueue struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (q *memoryQueue) Enqueue(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func newTestDispatcher(t *testing.T, queue Queue, channels []Channel, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	d, err := New(queue, channels, opts...)
	require.NoError(t, err)
	return d
}

func bothEnabled() Preferences {
	return Preferences{PreferredChannel: ChannelEmail, EmailEnabled: true, SMSEnabled: true}
}

func testRecipient() Recipient {
	return Recipient{Email: "jane.doe@example.com", Phone: "+15550100"}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, []Channel{&stubChannel{name: ChannelEmail}})
	assert.Error(t, err)

	_, err = New(&memoryQueue{}, nil)
	assert.Error(t, err)

	_, err = New(&memoryQueue{}, []Channel{
		&stubChannel{name: ChannelEmail},
		&stubChannel{name: ChannelEmail},
	})
	assert.Error(t, err)
}

func TestSendWelcome_Delivered(t *testing.T) {
	ch := &stubChannel{name: ChannelEmail, id: "msg-1"}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{ch})

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), DefaultPreferences())

	assert.Equal(t, Result{ID: "msg-1", Delivered: true, Message: OutcomeSent}, result)
	assert.Equal(t, 1, ch.callCount())
	assert.Zero(t, queue.len())
}

func TestSendWelcome_AllChannelsFailQueues(t *testing.T) {
	sendErr := errors.New("provider unavailable")
	emailCh := &stubChannel{name: ChannelEmail, err: sendErr}
	smsCh := &stubChannel{name: ChannelSMS, err: sendErr}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{emailCh, smsCh})

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), bothEnabled())

	assert.Equal(t, Result{ID: "-", Delivered: false, Message: OutcomeQueued}, result)
	assert.Equal(t, 1, emailCh.callCount())
	assert.Equal(t, 1, smsCh.callCount())
	require.Equal(t, 1, queue.len())
	assert.Equal(t, "corr-1", queue.messages[0].CorrelationID)
}

func TestSendWelcome_EnqueueFailure(t *testing.T) {
	ch := &stubChannel{name: ChannelEmail, err: errors.New("provider unavailable")}
	queue := &memoryQueue{err: errors.New("redis down")}
	d := newTestDispatcher(t, queue, []Channel{ch})

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), DefaultPreferences())

	assert.Equal(t, Result{ID: "-", Delivered: false, Message: OutcomeFailed}, result)
}

func TestDispatch_FallsThroughToSecondChannel(t *testing.T) {
	emailCh := &stubChannel{name: ChannelEmail, err: errors.New("bounce")}
	smsCh := &stubChannel{name: ChannelSMS, id: "sms-1"}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{emailCh, smsCh})

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), bothEnabled())

	assert.True(t, result.Delivered)
	assert.Equal(t, "sms-1", result.ID)
	assert.Equal(t, 1, emailCh.callCount())
	assert.Equal(t, 1, smsCh.callCount())
	assert.Zero(t, queue.len())
}

func TestDispatch_PreferredChannelGoesFirst(t *testing.T) {
	var order []string
	record := func(name string) func(context.Context, Message) (string, error) {
		return func(context.Context, Message) (string, error) {
			order = append(order, name)
			return "", errors.New("bounce")
		}
	}
	emailCh := &stubChannel{name: ChannelEmail, sendFn: record(ChannelEmail)}
	smsCh := &stubChannel{name: ChannelSMS, sendFn: record(ChannelSMS)}
	d := newTestDispatcher(t, &memoryQueue{}, []Channel{emailCh, smsCh})

	prefs := Preferences{PreferredChannel: ChannelSMS, EmailEnabled: true, SMSEnabled: true}
	d.SendWelcome(context.Background(), "corr-1", testRecipient(), prefs)

	assert.Equal(t, []string{ChannelSMS, ChannelEmail}, order)
}

func TestDispatch_DisabledChannelSkipped(t *testing.T) {
	emailCh := &stubChannel{name: ChannelEmail, id: "msg-1"}
	smsCh := &stubChannel{name: ChannelSMS, id: "sms-1"}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{emailCh, smsCh})

	prefs := Preferences{PreferredChannel: ChannelEmail, SMSEnabled: true}
	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), prefs)

	assert.Equal(t, "sms-1", result.ID)
	assert.Zero(t, emailCh.callCount())
}

func TestDispatch_NoEnabledChannelsQueues(t *testing.T) {
	ch := &stubChannel{name: ChannelEmail, id: "msg-1"}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{ch})

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), Preferences{})

	assert.Equal(t, Result{ID: "-", Delivered: false, Message: OutcomeQueued}, result)
	assert.Zero(t, ch.callCount())
}

func TestDispatch_SendTimeoutQueues(t *testing.T) {
	slow := &stubChannel{name: ChannelEmail, sendFn: func(ctx context.Context, _ Message) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	}}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{slow}, WithSendTimeout(20*time.Millisecond))

	result := d.SendWelcome(context.Background(), "corr-1", testRecipient(), DefaultPreferences())

	assert.Equal(t, Result{ID: "-", Delivered: false, Message: OutcomeQueued}, result)
	assert.Equal(t, 1, queue.len())
}

func TestDispatch_Deterministic(t *testing.T) {
	ch := &stubChannel{name: ChannelEmail, err: errors.New("bounce")}
	queue := &memoryQueue{}
	d := newTestDispatcher(t, queue, []Channel{ch})

	first := d.SendWelcome(context.Background(), "corr-1", testRecipient(), DefaultPreferences())
	for range 5 {
		assert.Equal(t, first, d.SendWelcome(context.Background(), "corr-1", testRecipient(), DefaultPreferences()))
	}
}

func TestSendStatusUpdate_CarriesStatusMetadata(t *testing.T) {
	var got Message
	ch := &stubChannel{name: ChannelEmail, sendFn: func(_ context.Context, msg Message) (string, error) {
		got = msg
		return "msg-1", nil
	}}
	d := newTestDispatcher(t, &memoryQueue{}, []Channel{ch})

	result := d.SendStatusUpdate(context.Background(), "corr-9", testRecipient(), "suspended",
		map[string]string{"reason": "manual review"}, DefaultPreferences())

	assert.True(t, result.Delivered)
	assert.Equal(t, "corr-9", got.CorrelationID)
	assert.Equal(t, "suspended", got.Metadata["status"])
	assert.Equal(t, "manual review", got.Metadata["reason"])
	assert.Contains(t, got.Body, "suspended")
	assert.Contains(t, got.Body, "Jane")
}
