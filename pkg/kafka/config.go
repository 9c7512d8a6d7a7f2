package kafka

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Config describes how to reach the cluster.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	TLS           bool
	// SASL is nil for brokers that accept unauthenticated clients.
	SASL          *SASLConfig
	// WriteTimeout bounds one produce request; zero keeps the kafka-go default.
	WriteTimeout  time.Duration
}

// SASLConfig holds broker credentials. Mechanism is PLAIN (the default),
// SCRAM-SHA-256 or SCRAM-SHA-512.
type SASLConfig struct {
	Mechanism string
	Username  string
	Password  string
}

func (c Config) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (c Config) secure() bool {
	return c.TLS || c.SASL != nil
}

func (c Config) saslMechanism() (sasl.Mechanism, error) {
	if c.SASL == nil {
		return nil, nil
	}
	s := c.SASL
	switch s.Mechanism {
	case "", "PLAIN":
		return plain.Mechanism{Username: s.Username, Password: s.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.Username, s.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, s.Username, s.Password)
	}
	return nil, fmt.Errorf("unsupported SASL mechanism %q", s.Mechanism)
}
