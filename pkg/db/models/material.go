package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a catalog entry referenced by requests and stock movements.
type Material struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string                  `gorm:"column:name;type:text;not null;uniqueIndex:ux_materials_name" json:"name"`
	Unit          string                  `gorm:"column:unit;type:text;not null" json:"unit"`
	AlertQuantity decimal.Decimal         `gorm:"column:alert_quantity;type:numeric(18,4);not null;default:0" json:"alert_quantity"`
	IsActive      bool                    `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Suppliers     []MaterialSupplierPrice `gorm:"foreignKey:MaterialID" json:"suppliers,omitempty"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// PrimaryPrice returns the price of the first-ranked supplier, or zero.
func (m Material) PrimaryPrice() decimal.Decimal {
	if len(m.Suppliers) == 0 {
		return decimal.Zero
	}
	best := m.Suppliers[0]
	for _, s := range m.Suppliers[1:] {
		if s.Position < best.Position {
			best = s
		}
	}
	return best.Price
}

// MaterialSupplierPrice is one (supplier, price) pair; position 0 is primary.
type MaterialSupplierPrice struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MaterialID   uuid.UUID       `gorm:"column:material_id;type:uuid;not null;index" json:"material_id"`
	SupplierName string          `gorm:"column:supplier_name;type:text;not null" json:"supplier_name"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(18,4);not null;default:0" json:"price"`
	Position     int             `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
