// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Events travel as JSON; consumers hand each message to
// a MessageHandler and commit it once handled or given up on.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   *resilience.RetryConfig
}

// NewConsumer creates a Consumer in the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return NewConsumerInGroup(cfg, topic, cfg.ConsumerGroup, handler)
}

type consumerOptions struct {
	reader kafka.ReaderConfig
	retry  *resilience.RetryConfig
}

// ConsumerOption adjusts how a Consumer reads and handles messages.
type ConsumerOption func(*consumerOptions)

// FromFirstOffset makes a group without committed offsets start at the
// beginning of the topic instead of its end.
func FromFirstOffset() ConsumerOption {
	return func(o *consumerOptions) {
		o.reader.StartOffset = kafka.FirstOffset
	}
}

// WithRetry retries a failing handler with backoff before the message is
// given up and committed.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(o *consumerOptions) {
		o.retry = &cfg
	}
}

// NewConsumerInGroup creates a Consumer in groupID. Broadcast topics such as
// cache invalidation need one group per instance so every instance sees
// every message.
func NewConsumerInGroup(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	o := consumerOptions{reader: kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Consumer{
		reader:  kafka.NewReader(o.reader),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID),
		handler: handler,
		retry:   o.retry,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handle(ctx, msg.Key, msg.Value); err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("giving up on message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, key, value []byte) error {
	if c.retry == nil {
		return c.handler(ctx, key, value)
	}
	return resilience.Retry(ctx, "kafka-handler", *c.retry, func() error {
		return c.handler(ctx, key, value)
	})
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
