package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// OutboxDLQ keeps a copy of an outbox row the publisher gave up on, with the
// reason, so it can be replayed by hand.
type OutboxDLQ struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	// EventID is the outbox_events id, not the envelope event id.
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;index:idx_outbox_dlq_event_id"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload_json;type:jsonb;not null"`

	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:text;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	AttemptCount int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time                  `gorm:"column:failed_at;index:idx_outbox_dlq_failed_at,sort:desc"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
