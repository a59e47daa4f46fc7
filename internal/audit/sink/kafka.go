package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"usergate/internal/audit"
	"usergate/internal/platform/config"
	dErrors "usergate/pkg/domain-errors"
)

// Kafka publishes audit records to a topic, keyed by correlation id so all
// records for one logical operation land in the same partition, in order.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// kafkaPayload is the wire shape published to the audit topic.
type kafkaPayload struct {
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlation_id"`
	Action        string         `json:"action"`
	Subject       string         `json:"subject"`
	Source        string         `json:"source"`
	Context       map[string]any `json:"context"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// NewKafka builds a producer for the audit topic.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create kafka audit producer")
	}
	return &Kafka{client: client, topic: cfg.AuditTopic}, nil
}

// Write publishes one audit record and waits for broker acknowledgement.
func (k *Kafka) Write(ctx context.Context, event audit.Event) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(kafkaPayload{
		ID:            id,
		CorrelationID: event.CorrelationID,
		Action:        event.Action,
		Subject:       event.Subject,
		Source:        string(event.Source),
		Context:       event.Context,
		OccurredAt:    event.Timestamp,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal audit payload")
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.CorrelationID),
		Value: payload,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "publish audit record")
	}
	return id, nil
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
