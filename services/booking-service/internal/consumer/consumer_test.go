package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeDedupe struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeDedupe) Seen(ctx context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedupe) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	f.marked = append(f.marked, eventID)
	return true, nil
}

func testMessage(eventID string) kafka.Message {
	return kafka.Message{
		Topic: "booking.appointment.cancelled.v1",
		Key:   []byte(eventID),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("booking.appointment.cancelled.v1")},
		},
	}
}

func newTestConsumer(dedupe Dedupe, handler Handler) *Consumer {
	return &Consumer{
		inbox:   dedupe,
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestProcessMarksInboxAfterSuccessfulHandle(t *testing.T) {
	dedupe := &fakeDedupe{seen: make(map[string]bool)}
	handled := 0
	c := newTestConsumer(dedupe, func(ctx context.Context, msg kafka.Message) error {
		handled++
		return nil
	})

	if err := c.process(context.Background(), testMessage("evt-1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if handled != 1 {
		t.Errorf("handled = %d, want 1", handled)
	}
	if len(dedupe.marked) != 1 || dedupe.marked[0] != "evt-1" {
		t.Errorf("marked = %v, want [evt-1]", dedupe.marked)
	}
}

func TestProcessFailedHandleStaysUnmarked(t *testing.T) {
	dedupe := &fakeDedupe{seen: make(map[string]bool)}
	attempts := 0
	handlerErr := errors.New("downstream unavailable")
	c := newTestConsumer(dedupe, func(ctx context.Context, msg kafka.Message) error {
		attempts++
		if attempts == 1 {
			return handlerErr
		}
		return nil
	})

	msg := testMessage("evt-2")
	if err := c.process(context.Background(), msg); !errors.Is(err, handlerErr) {
		t.Fatalf("first process: got %v, want handler error", err)
	}
	if len(dedupe.marked) != 0 {
		t.Fatalf("failed message was marked processed: %v", dedupe.marked)
	}

	// Redelivery retries the handler instead of being deduped away.
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("redelivered process: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if len(dedupe.marked) != 1 {
		t.Errorf("marked = %v, want one entry after retry", dedupe.marked)
	}
}

func TestProcessSkipsSeenEvent(t *testing.T) {
	dedupe := &fakeDedupe{seen: map[string]bool{"evt-3": true}}
	c := newTestConsumer(dedupe, func(ctx context.Context, msg kafka.Message) error {
		t.Fatal("handler called for duplicate event")
		return nil
	})

	if err := c.process(context.Background(), testMessage("evt-3")); err != nil {
		t.Fatalf("process: %v", err)
	}
}
