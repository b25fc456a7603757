package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// MaterialRequest is a requester's ask for materials against a project.
type MaterialRequest struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID                   `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	RequestedBy uuid.UUID                   `gorm:"column:requested_by;type:uuid;not null;index" json:"requested_by"`
	Status      enums.MaterialRequestStatus `gorm:"column:status;type:text;not null;default:'pending';index" json:"status"`
	ApprovedBy  *uuid.UUID                  `gorm:"column:approved_by;type:uuid" json:"approved_by"`
	ApprovedAt  *time.Time                  `gorm:"column:approved_at" json:"approved_at"`
	IssuedBy    *uuid.UUID                  `gorm:"column:issued_by;type:uuid" json:"issued_by"`
	IssuedAt    *time.Time                  `gorm:"column:issued_at" json:"issued_at"`
	Notes       string                      `gorm:"column:notes;type:text;not null;default:''" json:"notes"`
	Items       []MaterialRequestItem       `gorm:"foreignKey:RequestID" json:"items"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// MaterialRequestItem is one line of a request. Items are owned by the
// request and ordered by Position.
type MaterialRequestItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID       `gorm:"column:request_id;type:uuid;not null;index" json:"request_id"`
	Position   int             `gorm:"column:position;not null" json:"position"`
	MaterialID uuid.UUID       `gorm:"column:material_id;type:uuid;not null" json:"material_id"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(18,4);not null" json:"quantity"`
}
