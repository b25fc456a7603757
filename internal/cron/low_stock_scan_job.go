package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

type LowStockScanJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Inventory lowStockLister
	Outbox    outboxEmitter
}

type lowStockLister interface {
	ListLowStock(ctx context.Context, warehouseID *uuid.UUID) ([]inventory.StockRow, error)
}

// NewLowStockScanJob emits inventory_low_stock for every record sitting at or
// below its alert quantity. Events share the per-day dedupe key used at
// issuance time, so a record already reported today is skipped.
func NewLowStockScanJob(params LowStockScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &lowStockScanJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type lowStockScanJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory lowStockLister
	outbox    outboxEmitter
	now       func() time.Time
}

func (j *lowStockScanJob) Name() string { return "low-stock-scan" }

func (j *lowStockScanJob) Run(ctx context.Context) error {
	rows, err := j.inventory.ListLowStock(ctx, nil)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}

	now := j.now().UTC()
	var errs error
	emitted := 0
	for _, row := range rows {
		material := models.Material{ID: row.MaterialID, Name: row.MaterialName, AlertQuantity: row.AlertQuantity}
		event := issuance.LowStockEvent(row.WarehouseID, material, row.Quantity, now)
		event.OccurredAt = now
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			created, err := j.outbox.EmitIfNotExists(ctx, tx, event)
			if created {
				emitted++
			}
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("material %s in warehouse %s: %w", row.MaterialID, row.WarehouseID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock_records": len(rows),
		"events_emitted":    emitted,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}
