package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

const TopicStoryEvents = "story.events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducerClient struct {
	StoryEventsWriter messageWriter
	logger            logger.Logger
}

func NewKafkaProducerClient(cfg config.Config, log logger.Logger) (*KafkaProducerClient, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return nil, fmt.Errorf("config Kafka brokers not found")
	}

	// writer 'story.events', keyed by story id so one story's events stay ordered
	storyWriter := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicStoryEvents,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	log.Info("Initialize Kafka Producers successfully.")

	return &KafkaProducerClient{StoryEventsWriter: storyWriter, logger: log}, nil
}

func (c *KafkaProducerClient) Publish(ctx context.Context, evt story.Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal story event: %w", err)
	}
	err = c.StoryEventsWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.StoryID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write story event: %w", err)
	}
	return nil
}

func (c *KafkaProducerClient) Close() {
	if c.StoryEventsWriter != nil {
		if err := c.StoryEventsWriter.Close(); err != nil {
			c.logger.Error("Failed to close Kafka writer", err)
		}
	}
	c.logger.Info("Closed Kafka Producers")
}
