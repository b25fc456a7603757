package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title     string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                 `gorm:"column:message;type:text;not null" json:"message"`
	Link      *string                `gorm:"column:link;type:text" json:"link"`
	EventID   *uuid.UUID             `gorm:"column:event_id;type:uuid" json:"event_id"`
	ReadAt    *time.Time             `gorm:"column:read_at" json:"read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
