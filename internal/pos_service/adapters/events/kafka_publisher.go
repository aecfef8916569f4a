package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

// KafkaPublisher emits transaction lifecycle events to a Kafka topic.
// Messages are keyed by invoice number so all events for one sale land on
// the same partition, preserving their order for consumers.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With("adapter", "kafka_publisher", "topic", topic),
	}
}

// Publish is best effort: serialization or broker errors are logged and
// swallowed so the sale path never fails on event delivery.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.TransactionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to encode transaction event",
			"event_type", event.EventType, "transaction_id", event.TransactionID, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.InvoiceNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish transaction event",
			"event_type", event.EventType, "invoice_number", event.InvoiceNumber, "error", err)
		return
	}
	p.logger.DebugContext(ctx, "Transaction event published",
		"event_type", event.EventType, "invoice_number", event.InvoiceNumber)
}

// Close flushes buffered messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops all events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event domain.TransactionEvent) {}
