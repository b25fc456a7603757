package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// OutboxEvent is written in the same transaction as the state change it
// describes. Index tags mirror the goose migration so sqlite-backed tests see
// the same lookups.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null;index:idx_outbox_events_aggregate,priority:1"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null;index:idx_outbox_events_aggregate,priority:2"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index:idx_outbox_events_aggregate,priority:3"`
	// DedupeKey is set by EmitIfNotExists callers, e.g. one low-stock alert
	// per warehouse, material and day.
	DedupeKey *string         `gorm:"column:dedupe_key;type:text;uniqueIndex:ux_outbox_events_dedupe_key"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`

	// delivery bookkeeping, owned by the outbox publisher
	PublishedAt  *time.Time `gorm:"column:published_at"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
