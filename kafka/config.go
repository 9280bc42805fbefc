// Package kafka republishes polled tag values to Kafka clusters.
package kafka

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"signaltap/config"
)

// DefaultTopic receives tag values when a cluster names no topic.
const DefaultTopic = "signaltap-tags"

// SASLMechanism represents the SASL authentication mechanism.
type SASLMechanism string

const (
	SASLNone        SASLMechanism = ""
	SASLPlain       SASLMechanism = "PLAIN"
	SASLSCRAMSHA256 SASLMechanism = "SCRAM-SHA-256"
	SASLSCRAMSHA512 SASLMechanism = "SCRAM-SHA-512"
)

func topicOf(cfg *config.KafkaConfig) string {
	if cfg.Topic == "" {
		return DefaultTopic
	}
	return cfg.Topic
}

func tlsConfig(cfg *config.KafkaConfig) *tls.Config {
	if !cfg.UseTLS {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLSSkipVerify,
	}
}

// saslMechanism returns the configured SASL mechanism, or nil without credentials.
func saslMechanism(cfg *config.KafkaConfig) (sasl.Mechanism, error) {
	if cfg.Username == "" {
		return nil, nil
	}

	switch SASLMechanism(strings.ToUpper(cfg.SASLMechanism)) {
	case SASLPlain, SASLNone:
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case SASLSCRAMSHA256:
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case SASLSCRAMSHA512:
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unknown SASL mechanism %q", cfg.SASLMechanism)
	}
}

// newDialer creates a dialer with auth and TLS, used for the connectivity check.
func newDialer(cfg *config.KafkaConfig) (*kafka.Dialer, error) {
	mechanism, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		TLS:           tlsConfig(cfg),
		SASLMechanism: mechanism,
	}, nil
}

// newWriter creates the topic writer for a cluster.
func newWriter(cfg *config.KafkaConfig) (*kafka.Writer, error) {
	mechanism, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	acks := kafka.RequireAll
	if cfg.RequiredAcks != 0 {
		acks = kafka.RequiredAcks(cfg.RequiredAcks)
	}

	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    topicOf(cfg),
		Balancer: &kafka.Hash{},
		Transport: &kafka.Transport{
			DialTimeout: 10 * time.Second,
			TLS:         tlsConfig(cfg),
			SASL:        mechanism,
		},
		RequiredAcks:           acks,
		BatchSize:              100,
		BatchBytes:             1048576,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}, nil
}
