package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
)

// EventDescriptor is where and how one event type is published.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        decoderFunc
}

// ResolvedEvent is a validated outbox row with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is what the publisher consults before sending a row.
type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish successfully.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[lane]string{
		laneDomain:       cfg.DomainTopic,
		laneNotification: cfg.NotificationTopic,
	}
	switch {
	case cfg.DomainTopic == "":
		return nil, errors.New("domain topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}

	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(v1Events))}
	for _, s := range v1Events {
		reg.byType[s.eventType] = EventDescriptor{
			EventType:     s.eventType,
			AggregateType: s.aggregate,
			Topic:         topics[s.lane],
			decode:        s.decode,
		}
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	d, ok := r.byType[eventType]
	return d, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row is malformed, not the broker.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case d.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to %s, row says %s", row.EventType, d.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate_id", row.EventType)
	}

	envelope, _, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, permanent("%s: %w", row.EventType, err)
	}
	payload, err := d.decode(envelope.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: envelope, Payload: payload}, nil
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}
