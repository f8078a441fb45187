package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/r-menendez/slotline/libs/kafkax"
	otelx "github.com/r-menendez/slotline/libs/otel"
)

// Publisher drains the outbox to Kafka. Event type is used as the topic,
// aggregate id as the message key so events for one appointment stay
// ordered within a partition.
type Publisher struct {
	repo    *Repository
	brokers []string
	logger  *slog.Logger

	interval  time.Duration
	batchSize int

	writers map[string]*kafka.Writer
}

func NewPublisher(repo *Repository, brokers []string, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:      repo,
		brokers:   brokers,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
		writers:   make(map[string]*kafka.Writer),
	}
}

// Run polls until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.closeWriters()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish batch failed", "error", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) error {
	events, err := p.repo.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return err
	}
	for _, evt := range events {
		if err := p.publish(ctx, evt); err != nil {
			p.logger.Error("publish event failed",
				"event_id", evt.ID,
				"event_type", evt.Type,
				"error", err,
			)
			continue
		}
		if err := p.repo.MarkPublished(ctx, evt.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, evt.Traceparent, evt.Tracestate)

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(evt.ID.String())},
		{Key: "event_type", Value: []byte(evt.Type)},
	}
	headers = kafkax.InjectTraceHeaders(msgCtx, headers)

	return p.writer(evt.Type).WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.AggregateID.String()),
		Value:   evt.Payload,
		Headers: headers,
	})
}

func (p *Publisher) writer(topic string) *kafka.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	p.writers[topic] = w
	return w
}

func (p *Publisher) closeWriters() {
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.logger.Warn("close kafka writer", "topic", topic, "error", err)
		}
	}
}
