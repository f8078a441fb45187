package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	otelx "github.com/r-menendez/slotline/libs/otel"
)

// Event is an outbox row. Events are appended in the same transaction as
// the state change they describe and published to Kafka by a background
// loop; Type doubles as the topic name.
type Event struct {
	ID          uuid.UUID
	Type        string
	AggregateID uuid.UUID
	Payload     json.RawMessage
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEvent marshals payload and captures the caller's trace context so the
// publisher can continue the trace across the broker.
func NewEvent(ctx context.Context, eventType string, aggregateID uuid.UUID, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     body,
		Traceparent: traceparent,
		Tracestate:  tracestate,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
