// Package dbtest opens isolated in-memory sqlite databases with the full
// schema for repository and service tests.
package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// Open returns a migrated sqlite database private to the test. The pool is
// pinned to one connection so concurrent transactions serialize the way row
// locks would serialize them on Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	conn := Open(t)
	return db.FromGorm(conn), conn
}

// Qty is shorthand for decimal literals in tests.
func Qty(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// MaterialOpts customizes SeedMaterial.
type MaterialOpts struct {
	Unit          string
	AlertQuantity decimal.Decimal
	Prices        []decimal.Decimal
}

// SeedMaterial inserts a material with supplier prices in position order.
func SeedMaterial(t testing.TB, conn *gorm.DB, name string, opts MaterialOpts) models.Material {
	t.Helper()
	if opts.Unit == "" {
		opts.Unit = "unit"
	}
	m := models.Material{Name: name, Unit: opts.Unit, AlertQuantity: opts.AlertQuantity, IsActive: true}
	if err := conn.Create(&m).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	for i, price := range opts.Prices {
		sp := models.MaterialSupplierPrice{MaterialID: m.ID, SupplierName: "supplier-" + string(rune('A'+i)), Price: price, Position: i}
		if err := conn.Create(&sp).Error; err != nil {
			t.Fatalf("seed supplier price: %v", err)
		}
		m.Suppliers = append(m.Suppliers, sp)
	}
	return m
}

// SeedWarehouse inserts a warehouse of the given type.
func SeedWarehouse(t testing.TB, conn *gorm.DB, name string, typ enums.WarehouseType) models.Warehouse {
	t.Helper()
	w := models.Warehouse{Name: name, Type: typ}
	if err := conn.Create(&w).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return w
}

// SeedProject inserts a shared-warehouse project unless dedicated is given.
func SeedProject(t testing.TB, conn *gorm.DB, name string, dedicated *uuid.UUID) models.Project {
	t.Helper()
	p := models.Project{Name: name, WarehouseMode: enums.ProjectWarehouseShared, IsActive: true}
	if dedicated != nil {
		p.WarehouseMode = enums.ProjectWarehouseDedicated
		p.DedicatedWarehouseID = dedicated
	}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

// SeedStock sets the on-hand quantity for (warehouse, material).
func SeedStock(t testing.TB, conn *gorm.DB, warehouseID, materialID uuid.UUID, qty decimal.Decimal) {
	t.Helper()
	rec := models.InventoryRecord{WarehouseID: warehouseID, MaterialID: materialID, Quantity: qty, LastUpdated: time.Now().UTC()}
	if err := conn.Create(&rec).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

// SeedRequest inserts a request in the given status with its lines.
func SeedRequest(t testing.TB, conn *gorm.DB, projectID, requester uuid.UUID, status enums.MaterialRequestStatus, lines ...models.MaterialRequestItem) models.MaterialRequest {
	t.Helper()
	req := models.MaterialRequest{ProjectID: projectID, RequestedBy: requester, Status: status}
	for i := range lines {
		lines[i].Position = i
	}
	req.Items = lines
	if err := conn.Create(&req).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return req
}

// StockOf returns the on-hand quantity, zero when no row exists.
func StockOf(t testing.TB, conn *gorm.DB, warehouseID, materialID uuid.UUID) decimal.Decimal {
	t.Helper()
	var rec models.InventoryRecord
	err := conn.Where("warehouse_id = ? AND material_id = ?", warehouseID, materialID).Limit(1).Find(&rec).Error
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return rec.Quantity
}
