package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// MaterialTransaction is an immutable stock movement with its cost snapshot.
type MaterialTransaction struct {
	ID          uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID                     `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	MaterialID  uuid.UUID                     `gorm:"column:material_id;type:uuid;not null;index" json:"material_id"`
	WarehouseID uuid.UUID                     `gorm:"column:warehouse_id;type:uuid;not null" json:"warehouse_id"`
	Type        enums.MaterialTransactionType `gorm:"column:type;type:text;not null" json:"type"`
	Quantity    decimal.Decimal               `gorm:"column:quantity;type:numeric(18,4);not null" json:"quantity"`
	UnitCost    decimal.Decimal               `gorm:"column:unit_cost;type:numeric(18,4);not null" json:"unit_cost"`
	TotalCost   decimal.Decimal               `gorm:"column:total_cost;type:numeric(18,4);not null" json:"total_cost"`
	RequestID   *uuid.UUID                    `gorm:"column:request_id;type:uuid;index" json:"request_id"`
	PerformedBy uuid.UUID                     `gorm:"column:performed_by;type:uuid;not null" json:"performed_by"`
	CreatedAt   time.Time                     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
