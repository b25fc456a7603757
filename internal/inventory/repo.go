package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
)

// Repository is the SQL side of the ledger. Every mutation is a single
// statement so concurrent writers never race on a value read into memory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, warehouseID, materialID uuid.UUID) (*models.InventoryRecord, error)
	Decrement(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) (bool, error)
	Increment(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) error
	Set(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) error
	ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]StockRow, error)
	ListLowStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockRow, error)
}

// StockRow is an inventory record joined with its material.
type StockRow struct {
	WarehouseID   uuid.UUID       `gorm:"column:warehouse_id" json:"warehouse_id"`
	MaterialID    uuid.UUID       `gorm:"column:material_id" json:"material_id"`
	MaterialName  string          `gorm:"column:material_name" json:"material_name"`
	Unit          string          `gorm:"column:unit" json:"unit"`
	Quantity      decimal.Decimal `gorm:"column:quantity" json:"quantity"`
	AlertQuantity decimal.Decimal `gorm:"column:alert_quantity" json:"alert_quantity"`
	LastUpdated   time.Time       `gorm:"column:last_updated" json:"last_updated"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, warehouseID, materialID uuid.UUID) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND material_id = ?", warehouseID, materialID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Decrement subtracts qty only when enough is on hand. It reports false when
// the guard rejected the update (missing row or short stock).
func (r *repository) Decrement(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_records
		SET quantity = quantity - ?,
			last_updated = ?
		WHERE warehouse_id = ? AND material_id = ? AND quantity >= ?
	`, qty, time.Now().UTC(), warehouseID, materialID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) error {
	now := time.Now().UTC()
	rec := models.InventoryRecord{WarehouseID: warehouseID, MaterialID: materialID, Quantity: qty, LastUpdated: now}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "warehouse_id"}, {Name: "material_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":     gorm.Expr("inventory_records.quantity + ?", qty),
			"last_updated": now,
		}),
	}).Create(&rec).Error
}

func (r *repository) Set(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) error {
	now := time.Now().UTC()
	rec := models.InventoryRecord{WarehouseID: warehouseID, MaterialID: materialID, Quantity: qty, LastUpdated: now}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "warehouse_id"}, {Name: "material_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":     qty,
			"last_updated": now,
		}),
	}).Create(&rec).Error
}

func (r *repository) stockQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("inventory_records AS ir").
		Select(`ir.warehouse_id, ir.material_id, m.name AS material_name, m.unit,
			ir.quantity, m.alert_quantity, ir.last_updated`).
		Joins("JOIN materials m ON m.id = ir.material_id")
}

func (r *repository) ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]StockRow, error) {
	var rows []StockRow
	err := r.stockQuery(ctx).
		Where("ir.warehouse_id = ?", warehouseID).
		Order("m.name ASC").
		Scan(&rows).Error
	return rows, err
}

// ListLowStock returns rows at or below their material's alert quantity.
// A zero alert quantity disables alerts for that material.
func (r *repository) ListLowStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockRow, error) {
	query := r.stockQuery(ctx).
		Where("m.alert_quantity > 0 AND ir.quantity <= m.alert_quantity AND m.is_active = ?", true)
	if warehouseID != nil {
		query = query.Where("ir.warehouse_id = ?", *warehouseID)
	}
	var rows []StockRow
	err := query.Order("ir.warehouse_id ASC, m.name ASC").Scan(&rows).Error
	return rows, err
}
