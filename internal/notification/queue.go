package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	dErrors "usergate/pkg/domain-errors"
)

// Queue buffers messages whose every channel attempt failed so a separate
// worker can retry them later.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
}

const defaultRetryQueueKey = "notify:retry"

// RedisQueue is a Redis list backed retry queue. Messages are pushed to the
// head so a worker draining with RPOP sees oldest first.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
}

func NewRedisQueue(client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = defaultRetryQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal retry message")
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "enqueue retry message")
	}
	return nil
}

// InMemoryQueue buffers retry messages in process. It backs deployments
// without Redis; messages do not survive a restart.
type InMemoryQueue struct {
	mu       sync.Mutex
	messages []Message
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

func (q *InMemoryQueue) Enqueue(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

// Drain removes and returns all pending messages, oldest first.
func (q *InMemoryQueue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.messages
	q.messages = nil
	return out
}

// Len reports the number of pending retry messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "inspect retry queue")
	}
	return n, nil
}
