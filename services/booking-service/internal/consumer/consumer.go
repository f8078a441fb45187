package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/r-menendez/slotline/libs/kafkax"
)

// Handler processes one deduplicated message.
type Handler func(ctx context.Context, msg kafka.Message) error

// Dedupe is the inbox surface used to skip and record event ids.
type Dedupe interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Consumer reads one topic with inbox dedupe. The inbox row is written
// only after a successful handle, so failed messages are left uncommitted
// and the broker redelivers them for another attempt. A crash between
// handle and inbox write can replay a handled message; handlers tolerate
// that because matches are proposals, not bookings.
type Consumer struct {
	reader  *kafka.Reader
	inbox   Dedupe
	handler Handler
	logger  *slog.Logger
}

func New(brokers []string, topic, groupID string, inboxRepo Dedupe, handler Handler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0, // explicit commits only
		MaxWait:        500 * time.Millisecond,
	})
	return &Consumer{
		reader:  reader,
		inbox:   inboxRepo,
		handler: handler,
		logger:  logger.With("topic", topic, "group", groupID),
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed", "error", err)
			continue
		}
		if err := c.process(ctx, msg); err != nil {
			c.logger.Error("process message failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	msgCtx := kafkax.ExtractTraceContext(ctx, msg)
	meta := kafkax.ExtractEventMeta(msg)

	seen, err := c.inbox.Seen(msgCtx, meta.EventID)
	if err != nil {
		return err
	}
	if seen {
		c.logger.Debug("duplicate event skipped", "event_id", meta.EventID)
		return nil
	}
	if err := c.handler(msgCtx, msg); err != nil {
		return err
	}
	_, err = c.inbox.MarkProcessed(msgCtx, meta.EventID, meta.EventType)
	return err
}
