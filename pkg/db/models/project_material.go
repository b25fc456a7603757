package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectMaterial accumulates planned versus issued quantity and cost per
// (project, material).
type ProjectMaterial struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID       uuid.UUID       `gorm:"column:project_id;type:uuid;not null;uniqueIndex:ux_project_materials_project_material,priority:1" json:"project_id"`
	MaterialID      uuid.UUID       `gorm:"column:material_id;type:uuid;not null;uniqueIndex:ux_project_materials_project_material,priority:2" json:"material_id"`
	PlannedQuantity decimal.Decimal `gorm:"column:planned_quantity;type:numeric(18,4);not null;default:0" json:"planned_quantity"`
	IssuedQuantity  decimal.Decimal `gorm:"column:issued_quantity;type:numeric(18,4);not null;default:0" json:"issued_quantity"`
	UnitCost        decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4);not null;default:0" json:"unit_cost"`
	TotalCost       decimal.Decimal `gorm:"column:total_cost;type:numeric(18,4);not null;default:0" json:"total_cost"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
