package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef is the user on whose behalf an event was emitted.
type ActorRef struct {
	UserID    uuid.UUID  `json:"userId"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	Role      string     `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON written to outbox_events.payload and published
// verbatim as the Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = 1
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now.UTC()
	}
	return env, nil
}

// DecodeEnvelope parses a stored or delivered payload. Version defaults to 1
// and a usable event id and data section are required.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, uuid.UUID, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return env, uuid.Nil, fmt.Errorf("envelope event id: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, id, fmt.Errorf("envelope %s has no data", id)
	}
	if env.Version == 0 {
		env.Version = 1
	}
	return env, id, nil
}
