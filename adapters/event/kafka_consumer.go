package event

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type StoryEventHandler func(ctx context.Context, evt story.Event) error

// StoryEventConsumer reads story.events and hands each event to a handler.
// Messages are committed after the handler returns, whatever its result; a
// live notification is not worth a redelivery loop.
type StoryEventConsumer struct {
	reader messageReader
	handle StoryEventHandler
	logger logger.Logger
}

func NewStoryEventConsumer(cfg config.Config, groupID string, handle StoryEventHandler, log logger.Logger) *StoryEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    TopicStoryEvents,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &StoryEventConsumer{reader: reader, handle: handle, logger: log}
}

// Run blocks until ctx is cancelled.
func (c *StoryEventConsumer) Run(ctx context.Context) {
	c.logger.Info("Listening for story events", zap.String("topic", TopicStoryEvents))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("Failed to read message from Kafka", err)
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *StoryEventConsumer) process(ctx context.Context, msg kafka.Message) {
	l := c.logger.With(zap.String("topic", msg.Topic), zap.String("key", string(msg.Key)))

	var evt story.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		l.Error("Failed to unmarshal story event, skipping", err)
		c.commit(ctx, msg)
		return
	}

	if err := c.handle(ctx, evt); err != nil {
		l.Error("Failed to handle story event", err, zap.String("event_type", string(evt.Type)))
	}
	c.commit(ctx, msg)
}

func (c *StoryEventConsumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message", err)
	}
}

func (c *StoryEventConsumer) Close() error {
	return c.reader.Close()
}
