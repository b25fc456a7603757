package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryRecord is the on-hand quantity of one material in one warehouse.
type InventoryRecord struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_inventory_records_warehouse_material,priority:1" json:"warehouse_id"`
	MaterialID  uuid.UUID       `gorm:"column:material_id;type:uuid;not null;uniqueIndex:ux_inventory_records_warehouse_material,priority:2" json:"material_id"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(18,4);not null;default:0;check:chk_inventory_records_quantity,quantity >= 0" json:"quantity"`
	LastUpdated time.Time       `gorm:"column:last_updated;not null" json:"last_updated"`
}
