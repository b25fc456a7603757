package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Record is the on-hand view of one (warehouse, material) pair. A pair
// without a stored row reads as zero.
type Record struct {
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	MaterialID  uuid.UUID       `json:"material_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

// Adjustment is the outcome of Adjust: the quantity before and after.
type Adjustment struct {
	Record
	Before decimal.Decimal `json:"before"`
}

// CrossedBelow reports whether the adjustment moved stock from above alert
// to at-or-below it. Alerts are disabled when alert is zero.
func (a Adjustment) CrossedBelow(alert decimal.Decimal) bool {
	if !alert.IsPositive() {
		return false
	}
	return a.Before.GreaterThan(alert) && a.Quantity.LessThanOrEqual(alert)
}

// Service is the inventory ledger.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Get(ctx context.Context, warehouseID, materialID uuid.UUID) (Record, error)
	Adjust(ctx context.Context, warehouseID, materialID uuid.UUID, delta decimal.Decimal) (Adjustment, error)
	SetQuantity(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) (Record, error)
	List(ctx context.Context, warehouseID uuid.UUID) ([]StockRow, error)
	ListLowStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockRow, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
	// bound is set when the service already runs inside a caller's tx.
	bound bool
}

func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), catalog: s.catalog.WithTx(tx), tx: s.tx, bound: true}
}

func (s *service) run(ctx context.Context, fn func(repo Repository, catalogRepo catalog.Repository) error) error {
	if s.bound {
		return fn(s.repo, s.catalog)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx), s.catalog.WithTx(tx))
	})
}

// requirePair fails with NotFound unless both sides of the pair exist.
func requirePair(ctx context.Context, catalogRepo catalog.Repository, warehouseID, materialID uuid.UUID) error {
	if _, err := catalog.LoadWarehouse(ctx, catalogRepo, warehouseID); err != nil {
		return err
	}
	_, err := catalog.LoadMaterials(ctx, catalogRepo, []uuid.UUID{materialID})
	return err
}

func checkScale(field string, qty decimal.Decimal) error {
	if models.FitsQuantityScale(qty) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "%s allows at most %d decimal places", field, models.QuantityScale).
		WithDetails(map[string]any{"field": field, "value": qty.String()})
}

func (s *service) Get(ctx context.Context, warehouseID, materialID uuid.UUID) (Record, error) {
	return get(ctx, s.repo, warehouseID, materialID)
}

func get(ctx context.Context, repo Repository, warehouseID, materialID uuid.UUID) (Record, error) {
	rec, err := repo.Find(ctx, warehouseID, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{WarehouseID: warehouseID, MaterialID: materialID, Quantity: decimal.Zero}, nil
		}
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}
	updated := rec.LastUpdated
	return Record{
		WarehouseID: rec.WarehouseID,
		MaterialID:  rec.MaterialID,
		Quantity:    rec.Quantity,
		LastUpdated: &updated,
	}, nil
}

// Adjust applies delta atomically. Negative deltas fail with
// INSUFFICIENT_STOCK instead of driving quantity below zero.
func (s *service) Adjust(ctx context.Context, warehouseID, materialID uuid.UUID, delta decimal.Decimal) (Adjustment, error) {
	if delta.IsZero() {
		return Adjustment{}, pkgerrors.New(pkgerrors.CodeValidation, "adjustment must be non-zero")
	}
	if err := checkScale("delta", delta); err != nil {
		return Adjustment{}, err
	}
	var out Adjustment
	err := s.run(ctx, func(repo Repository, catalogRepo catalog.Repository) error {
		if err := requirePair(ctx, catalogRepo, warehouseID, materialID); err != nil {
			return err
		}
		if delta.IsPositive() {
			if err := repo.Increment(ctx, warehouseID, materialID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment inventory")
			}
		} else {
			qty := delta.Abs()
			ok, err := repo.Decrement(ctx, warehouseID, materialID, qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
			}
			if !ok {
				current, gerr := get(ctx, repo, warehouseID, materialID)
				if gerr != nil {
					return gerr
				}
				return InsufficientStock(materialID.String(), materialID, qty, current.Quantity)
			}
		}
		after, err := get(ctx, repo, warehouseID, materialID)
		if err != nil {
			return err
		}
		out = Adjustment{Record: after, Before: after.Quantity.Sub(delta)}
		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}
	return out, nil
}

// InsufficientStock builds the typed error for a rejected decrement.
func InsufficientStock(label string, materialID uuid.UUID, requested, available decimal.Decimal) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock for %s: requested %s, available %s",
		label, requested.String(), available.String()).
		WithDetails(map[string]any{
			"material_id": materialID,
			"requested":   requested.String(),
			"available":   available.String(),
		})
}

func (s *service) SetQuantity(ctx context.Context, warehouseID, materialID uuid.UUID, qty decimal.Decimal) (Record, error) {
	if qty.IsNegative() {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if err := checkScale("quantity", qty); err != nil {
		return Record{}, err
	}
	var out Record
	err := s.run(ctx, func(repo Repository, catalogRepo catalog.Repository) error {
		if err := requirePair(ctx, catalogRepo, warehouseID, materialID); err != nil {
			return err
		}
		if err := repo.Set(ctx, warehouseID, materialID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set inventory quantity")
		}
		rec, err := get(ctx, repo, warehouseID, materialID)
		out = rec
		return err
	})
	return out, err
}

func (s *service) List(ctx context.Context, warehouseID uuid.UUID) ([]StockRow, error) {
	rows, err := s.repo.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return rows, nil
}

func (s *service) ListLowStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockRow, error) {
	rows, err := s.repo.ListLowStock(ctx, warehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	return rows, nil
}
