package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/promptguard/promptguard/pkg/config"
)

// KafkaSink publishes audit records to a Kafka topic, keyed by request id.
type KafkaSink struct {
	topic    string
	producer *kafka.Producer
}

func NewKafkaSink(cfg *config.KafkaConfig) (*KafkaSink, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, errors.New("kafka host and port are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaSink{topic: cfg.Topic, producer: producer}, nil
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Write(_ context.Context, rec *Record) error {
	if s.producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	deliveryChan := make(chan kafka.Event)

	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.RequestID),
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce audit record: %w", err)
	}
	e := <-deliveryChan
	close(deliveryChan)

	m, ok := e.(*kafka.Message)
	if !ok {
		return errors.New("unexpected kafka delivery event")
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer != nil {
		s.producer.Flush(5000)
		s.producer.Close()
	}
	return nil
}
