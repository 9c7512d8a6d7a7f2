package kafka

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Message is a broker-agnostic record. Key selects the partition.
//
// Topic, Partition and Offset locate a consumed record in the log; they are
// ignored when publishing.
type Message struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
}

// Producer publishes to any number of topics through one writer per topic.
// Writers hash on the message key, so records sharing a key keep their
// relative order.
type Producer struct {
	mu           sync.Mutex
	writers      map[string]*kafkago.Writer
	brokers      []string
	transport    *kafkago.Transport
	writeTimeout time.Duration
}

// NewProducer validates cfg; writers are created on first publish.
func NewProducer(cfg Config) (*Producer, error) {
	p := &Producer{
		writers:      make(map[string]*kafkago.Writer),
		brokers:      cfg.Brokers,
		writeTimeout: cfg.WriteTimeout,
	}
	if !cfg.secure() {
		return p, nil
	}
	mechanism, err := cfg.saslMechanism()
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	p.transport = &kafkago.Transport{TLS: cfg.tlsConfig(), SASL: mechanism}
	return p, nil
}

// Publish writes messages to topic as one batch, waiting for all in-sync
// replicas to acknowledge.
func (p *Producer) Publish(ctx context.Context, topic string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := make([]kafkago.Message, len(messages))
	for i, m := range messages {
		batch[i] = toKafkaMessage(m)
	}
	if err := p.writer(topic).WriteMessages(ctx, batch...); err != nil {
		return fmt.Errorf("kafka producer: publish %d message(s) to %s: %w", len(batch), topic, err)
	}
	return nil
}

// Close flushes and closes every writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
	}
	clear(p.writers)
	return errors.Join(errs...)
}

func (p *Producer) writer(topic string) *kafkago.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = &kafkago.Writer{
			Addr:         kafkago.TCP(p.brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: p.writeTimeout,
			RequiredAcks: kafkago.RequireAll,
		}
		if p.transport != nil {
			w.Transport = p.transport
		}
		p.writers[topic] = w
	}
	return w
}

// toKafkaMessage emits headers sorted by key so identical messages are
// byte-identical on the wire.
func toKafkaMessage(m Message) kafkago.Message {
	km := kafkago.Message{Key: m.Key, Value: m.Value}
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		km.Headers = append(km.Headers, kafkago.Header{Key: k, Value: []byte(m.Headers[k])})
	}
	return km
}
