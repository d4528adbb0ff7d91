package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one raw event payload.
type MessageHandler interface {
	HandleMessage(ctx context.Context, payload []byte)
}

// Consumer reads order events from Kafka and hands them to a handler.
// Offsets are committed after handling, so a crash mid-message replays it;
// evaluation is idempotent enough for that (metadata merge plus a transition
// that fails cleanly when already applied).
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates a Kafka consumer for the given brokers and topic.
func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Consumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the fetch loop in a goroutine. It runs until the context is
// cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Info("kafka consumer started",
			"topic", c.reader.Config().Topic, "group", c.reader.Config().GroupID)

		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("kafka consumer shutting down")
					return
				}
				c.logger.Error("kafka fetch failed, retrying", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			c.handler.HandleMessage(ctx, msg.Value)

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("kafka commit failed", "error", err)
			}
		}
	}()
}

// Stop closes the reader and waits for the fetch loop to exit.
func (c *Consumer) Stop() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("kafka reader close failed", "error", err)
	}
	c.wg.Wait()
}
