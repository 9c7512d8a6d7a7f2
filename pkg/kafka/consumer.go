package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler processes one consumed message. A non-nil error is retried before
// the offset is committed, so a message is never skipped.
type Handler func(ctx context.Context, msg Message) error

// Consumer reads one topic as part of a consumer group and commits an offset
// only after its handler has accepted the message.
type Consumer struct {
	reader  *kafkago.Reader
	handler Handler
	logger  *slog.Logger

	// newBackOff builds the retry policy for a failing handler.
	newBackOff func() backoff.BackOff
}

// NewConsumer creates a Consumer for topic.
func NewConsumer(cfg Config, topic string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	readerCfg := kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	}

	mechanism, err := cfg.saslMechanism()
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if cfg.TLS || mechanism != nil {
		readerCfg.Dialer = &kafkago.Dialer{
			TLS:           cfg.tlsConfig(),
			SASLMechanism: mechanism,
		}
	}

	return &Consumer{
		reader:     kafkago.NewReader(readerCfg),
		handler:    handler,
		logger:     logger,
		newBackOff: handlerBackOff,
	}, nil
}

// handlerBackOff retries indefinitely, capped at 30s between attempts.
func handlerBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := c.reader.Config()
	c.logger.Info("consumer starting", "topic", cfg.Topic, "group", cfg.GroupID)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("consumer stopping")
				return nil
			}
			return fmt.Errorf("kafka consumer: fetch: %w", err)
		}

		if err := c.deliver(ctx, m); err != nil {
			// Only a cancelled context ends delivery; the message stays
			// uncommitted for the next group member.
			c.logger.Info("consumer stopping mid-delivery", "offset", m.Offset)
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("kafka commit failed",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
}

// deliver runs the handler until it succeeds or ctx is done.
func (c *Consumer) deliver(ctx context.Context, m kafkago.Message) error {
	msg := toMessage(m)
	return backoff.RetryNotify(
		func() error { return c.handler(ctx, msg) },
		backoff.WithContext(c.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("kafka handler failed, retrying",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"retry_in", wait,
				"error", err,
			)
		},
	)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("kafka consumer: close: %w", err)
	}
	return nil
}

func toMessage(m kafkago.Message) Message {
	msg := Message{
		Key:       m.Key,
		Value:     m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
