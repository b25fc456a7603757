package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// Project is the construction project materials are issued against.
type Project struct {
	ID                   uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name                 string                     `gorm:"column:name;type:text;not null" json:"name"`
	WarehouseMode        enums.ProjectWarehouseMode `gorm:"column:warehouse_type;type:text;not null;default:'shared'" json:"warehouse_mode"`
	DedicatedWarehouseID *uuid.UUID                 `gorm:"column:dedicated_warehouse_id;type:uuid" json:"dedicated_warehouse_id"`
	ManagerID            *uuid.UUID                 `gorm:"column:manager_id;type:uuid" json:"manager_id"`
	IsActive             bool                       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt            time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Warehouse holds inventory; exactly one MAIN warehouse is expected.
type Warehouse struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string              `gorm:"column:name;type:text;not null" json:"name"`
	Type      enums.WarehouseType `gorm:"column:type;type:text;not null;default:'main'" json:"type"`
	Location  string              `gorm:"column:location;type:text" json:"location"`
	ProjectID *uuid.UUID          `gorm:"column:project_id;type:uuid" json:"project_id"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
