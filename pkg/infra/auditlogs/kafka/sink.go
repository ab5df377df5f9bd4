package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// deliveryTimeoutMs caps how long librdkafka retries a message. Callers also
// bound Write with their own context.
const deliveryTimeoutMs = 5000

type Config struct {
	Host  string
	Port  string
	Topic string
}

func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("kafka host is required")
	}
	if c.Port == "" {
		return errors.New("kafka port is required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// Sink publishes audit events as JSON to a Kafka topic.
type Sink struct {
	cfg      Config
	producer *kafka.Producer
}

var _ auditlogs.Sink = (*Sink)(nil)

func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		"message.timeout.ms": deliveryTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Sink{cfg: cfg, producer: producer}, nil
}

func (s *Sink) Write(ctx context.Context, event auditlogs.Event) error {
	if s.producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.cfg.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Target.ID),
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka event %T", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) Close() error {
	if s.producer != nil {
		s.producer.Flush(5000)
		s.producer.Close()
	}
	return nil
}
