package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/segmentio/kafka-go"
)

// HeaderEventType names the header carrying Event.Type.
const HeaderEventType = "event-type"

// Event is the unit of data published to Kafka. Key selects the partition
// under the default balancer, Value is JSON-encoded and Type, when set, is
// sent as the event-type header so consumers can route without decoding.
type Event struct {
	Key   string
	Type  string
	Value any
}

// ProducerOption adjusts the writer built by NewProducer.
type ProducerOption func(*kafka.Writer)

// FirstPartition sends every message to the topic's first partition.
// Topics read by broadcast consumers need it, since those only follow
// partition 0.
func FirstPartition() ProducerOption {
	return func(w *kafka.Writer) { w.Balancer = firstPartition{} }
}

// Async makes Publish return before the broker acknowledges. Errors are
// logged by the writer's completion callback.
func Async() ProducerOption {
	return func(w *kafka.Writer) { w.Async = true }
}

type firstPartition struct{}

func (firstPartition) Balance(_ kafka.Message, partitions ...int) int {
	return partitions[0]
}

// Producer publishes JSON-encoded events to one topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for topic. Messages are hashed by key
// across partitions unless an option says otherwise.
func NewProducer(cfg config.KafkaConfig, topic string, opts ...ProducerOption) *Producer {
	logger := slog.Default().With("component", "kafka-producer", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.Async {
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("async publish failed", "count", len(messages), "error", err)
			}
		}
	}
	return &Producer{writer: w, logger: logger}
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling event value: %w", err)
	}
	msg := kafka.Message{Key: []byte(event.Key), Value: value}
	if event.Type != "" {
		msg.Headers = []kafka.Header{{Key: HeaderEventType, Value: []byte(event.Type)}}
	}
	return msg, nil
}

// Publish writes a single event.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in one call. Nothing is written when any of
// them fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := encode(event)
		if err != nil {
			return err
		}
		messages[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish", "count", len(messages), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("published", "count", len(messages))
	return nil
}

// Close flushes pending writes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
