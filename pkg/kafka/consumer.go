// Package kafka publishes and consumes JSON events with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

const maxFetchBackoff = 30 * time.Second

// MessageHandler processes one message. A returned error is logged and the
// message is skipped; it is still committed so one bad event cannot stall
// the partition.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Consumer feeds a topic to a MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	group   string
	logger  *slog.Logger
}

// NewConsumer creates a Consumer. Members of a non-empty group share the
// topic's partitions and commit offsets. An empty group makes a broadcast
// listener that follows partition 0 from the newest offset without
// committing, so every process sees every message.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler) *Consumer {
	logger := slog.Default().With("component", "kafka-consumer", "topic", topic)
	if group != "" {
		logger = logger.With("group", group)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	})
	if group == "" {
		if err := r.SetOffset(kafka.LastOffset); err != nil {
			logger.Warn("setting broadcast offset failed", "error", err)
		}
	}
	return &Consumer{reader: r, handler: handler, group: group, logger: logger}
}

// Start consumes until ctx is cancelled, then closes the reader. Fetch
// errors back off exponentially instead of spinning against a dead broker.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")

	backoff := time.Duration(0)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			c.logger.Info("consumer stopping")
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			backoff = min(max(2*backoff, 100*time.Millisecond), maxFetchBackoff)
			c.logger.Error("fetch failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0
		c.dispatch(ctx, msg)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	log.Debug("message received", "key", string(msg.Key), "type", headerValue(msg, HeaderEventType), "bytes", len(msg.Value))

	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		log.Error("handler failed; skipping message", "error", err)
	}
	if c.group == "" {
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		log.Error("commit failed", "error", err)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close closes the reader. Start closes it on return as well.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
