package repository

import (
	"context"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/internal/domain/repository"
	pkgkafka "Pasture/pkg/kafka"
)

// RecordProducer is the part of *kafka.Producer the publisher uses.
type RecordProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher announces appended records on a Kafka topic, keyed by
// account so one account's events stay ordered.
type KafkaPublisher struct {
	producer RecordProducer
	topic    string
}

var (
	_ repository.EventPublisher = (*KafkaPublisher)(nil)
	_ RecordProducer            = (*pkgkafka.Producer)(nil)
)

func NewKafkaPublisher(producer RecordProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishRecords(ctx context.Context, e models.RecordEvent) error {
	if e.EmittedAt.IsZero() {
		e.EmittedAt = time.Now().UTC()
	}
	key := e.AccountID
	if key == "" {
		key = string(e.Kind)
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), e)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRecords(context.Context, models.RecordEvent) error { return nil }
func (NoopPublisher) Close() error                                             { return nil }
