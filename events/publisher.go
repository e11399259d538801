// Package events announces newly registered artifact versions so that later
// pipeline stages can pick them up.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// Publisher sends artifact events.
type Publisher interface {
	PublishArtifactLogged(ctx context.Context, evt models.ArtifactLogged) error
	Close() error
}

// KafkaWriter is the subset of *kafka.Writer the publisher needs.
// It allows for mocking in unit tests.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per event, keyed by artifact name so
// all versions of one artifact land on the same partition.
type KafkaPublisher struct {
	writer KafkaWriter
	topic  string
	logger *utils.Logger
}

// NewKafkaPublisher creates a publisher for topic on broker.
func NewKafkaPublisher(broker, topic string, logger *utils.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	logger.Info("[events] Publishing to Kafka broker %s, topic %s", broker, topic)
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishArtifactLogged(ctx context.Context, evt models.ArtifactLogged) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.Name),
		Value: value,
		Time:  evt.LoggedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("artifact.logged")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write to %s: %w", p.topic, err)
	}
	p.logger.Debug("[events] Published %s:v%d", evt.Name, evt.Version)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishArtifactLogged(context.Context, models.ArtifactLogged) error { return nil }

func (NopPublisher) Close() error { return nil }
