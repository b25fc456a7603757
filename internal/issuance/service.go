package issuance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/materialrequests"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/metrics"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type lockKeyer interface {
	LockKey(scope, id string) string
}

// Service fulfils approved material requests and records returns.
type Service interface {
	Issue(ctx context.Context, requestID, actorID uuid.UUID) (*Result, error)
	Return(ctx context.Context, input ReturnInput) (*ReturnResult, error)
}

type ServiceParams struct {
	TX           txRunner
	Requests     materialrequests.Repository
	Catalog      catalog.Repository
	Inventory    inventory.Service
	Transactions transactions.Service
	Rollup       rollup.Service
	Outbox       outboxPublisher
	// Locker is optional; without it only the database guards apply.
	Locker   RequestLocker
	LockKeys lockKeyer
	Metrics  *metrics.IssuanceMetrics
	Logger   *logger.Logger
}

type service struct {
	tx        txRunner
	requests  materialrequests.Repository
	catalog   catalog.Repository
	inventory inventory.Service
	ledger    transactions.Service
	rollup    rollup.Service
	outbox    outboxPublisher
	locker    RequestLocker
	lockKeys  lockKeyer
	metrics   *metrics.IssuanceMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TX == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Requests == nil:
		return nil, fmt.Errorf("material request repository required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case params.Transactions == nil:
		return nil, fmt.Errorf("transactions service required")
	case params.Rollup == nil:
		return nil, fmt.Errorf("rollup service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	locker := params.Locker
	if locker == nil {
		locker = noopLocker{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        params.TX,
		requests:  params.Requests,
		catalog:   params.Catalog,
		inventory: params.Inventory,
		ledger:    params.Transactions,
		rollup:    params.Rollup,
		outbox:    params.Outbox,
		locker:    locker,
		lockKeys:  params.LockKeys,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

// Result describes a completed issuance.
type Result struct {
	Request      *models.MaterialRequest      `json:"request"`
	WarehouseID  uuid.UUID                    `json:"warehouse_id"`
	Transactions []models.MaterialTransaction `json:"transactions"`
	TotalCost    decimal.Decimal              `json:"total_cost"`
	LowStock     []uuid.UUID                  `json:"low_stock_material_ids,omitempty"`
}

// Issue fulfils an approved request in one transaction: stock leaves the
// resolved warehouse, every line is logged with its cost snapshot, project
// totals grow, and the request becomes issued. Any failure leaves no trace.
func (s *service) Issue(ctx context.Context, requestID, actorID uuid.UUID) (*Result, error) {
	started := time.Now()
	ctx = s.logg.WithFields(ctx, map[string]any{"request_id": requestID.String(), "user_id": actorID.String()})

	release := s.lock(ctx, requestID)
	defer release()

	var result *Result
	err := retry.Do(ctx, txRetryBackoff(), func(ctx context.Context) error {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			result, err = s.issueTx(ctx, tx, requestID, actorID)
			return err
		})
		if isTxConflict(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "issuance transaction aborted by the database; retrying")
			return retry.RetryableError(err)
		}
		return err
	})

	outcome := outcomeOf(err)
	s.metrics.Observe(outcome, time.Since(started))
	if err != nil {
		if outcome == metrics.OutcomeError {
			s.logg.Error(ctx, "material request issuance failed", err)
		} else {
			s.logg.Warn(s.logg.WithField(ctx, "outcome", outcome), "material request issuance rejected")
		}
		return nil, err
	}
	s.metrics.IncLowStock(len(result.LowStock))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"warehouse_id": result.WarehouseID.String(),
		"lines":        len(result.Transactions),
		"total_cost":   result.TotalCost.String(),
	}), "material request issued")
	return result, nil
}

func (s *service) lock(ctx context.Context, requestID uuid.UUID) func() {
	key := "issuance:" + requestID.String()
	if s.lockKeys != nil {
		key = s.lockKeys.LockKey("issuance", requestID.String())
	}
	release, err := s.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			s.logg.Warn(ctx, "issuance lock busy; relying on database guards")
		} else {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "issuance lock unavailable; relying on database guards")
		}
		return func() {}
	}
	return release
}

func (s *service) issueTx(ctx context.Context, tx *gorm.DB, requestID, actorID uuid.UUID) (*Result, error) {
	requests := s.requests.WithTx(tx)
	catalogRepo := s.catalog.WithTx(tx)

	req, err := requests.FindByIDForUpdate(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "material request %s not found", requestID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material request")
	}
	if req.Status != enums.MaterialRequestApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only approved requests can be issued").
			WithDetails(map[string]any{"request_id": req.ID, "status": req.Status})
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request has no line items")
	}

	project, err := catalog.LoadProject(ctx, catalogRepo, req.ProjectID)
	if err != nil {
		return nil, err
	}
	warehouse, err := catalog.ResolveWarehouse(ctx, catalogRepo, *project)
	if err != nil {
		return nil, err
	}

	items := append([]models.MaterialRequestItem(nil), req.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.MaterialID
	}
	materials, err := catalog.LoadMaterials(ctx, catalogRepo, ids)
	if err != nil {
		return nil, err
	}

	ledger := s.ledger.WithTx(tx)
	stock := s.inventory.WithTx(tx)
	totals := s.rollup.WithTx(tx)

	// Stock rows are decremented in material order, the lock order every
	// issuance shares. Ledger rows below keep request order.
	adjustments := make(map[int]inventory.Adjustment, len(items))
	for _, i := range lockOrder(items) {
		item := items[i]
		adj, err := stock.Adjust(ctx, warehouse.ID, item.MaterialID, item.Quantity.Neg())
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
				return nil, namedShortage(materials[item.MaterialID], typed)
			}
			return nil, err
		}
		adjustments[i] = adj
	}

	result := &Result{WarehouseID: warehouse.ID, TotalCost: decimal.Zero}
	lines := make([]payloads.IssuedLine, 0, len(items))
	for i, item := range items {
		material := materials[item.MaterialID]
		adj := adjustments[i]

		unitCost := catalog.UnitCost(material)
		txn, err := ledger.Record(ctx, transactions.RecordInput{
			ProjectID:   req.ProjectID,
			MaterialID:  item.MaterialID,
			WarehouseID: warehouse.ID,
			Type:        enums.MaterialTransactionIssue,
			Quantity:    item.Quantity,
			UnitCost:    unitCost,
			RequestID:   &req.ID,
			PerformedBy: actorID,
		})
		if err != nil {
			return nil, err
		}
		if err := totals.Increment(ctx, req.ProjectID, item.MaterialID, item.Quantity, txn.TotalCost, unitCost); err != nil {
			return nil, err
		}

		if adj.CrossedBelow(material.AlertQuantity) {
			if err := s.emitLowStock(ctx, tx, actorID, warehouse.ID, material, adj.Quantity); err != nil {
				return nil, err
			}
			result.LowStock = append(result.LowStock, material.ID)
		}

		result.Transactions = append(result.Transactions, *txn)
		result.TotalCost = result.TotalCost.Add(txn.TotalCost)
		lines = append(lines, payloads.IssuedLine{
			MaterialID:    item.MaterialID,
			Quantity:      item.Quantity,
			UnitCost:      unitCost,
			TotalCost:     txn.TotalCost,
			TransactionID: txn.ID,
		})
	}

	now := time.Now().UTC()
	ok, err := requests.Transition(ctx, req.ID, enums.MaterialRequestApproved, enums.MaterialRequestIssued, map[string]any{
		"issued_by": actorID,
		"issued_at": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark request issued")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only approved requests can be issued").
			WithDetails(map[string]any{"request_id": req.ID})
	}
	req.Status = enums.MaterialRequestIssued
	req.IssuedBy = &actorID
	req.IssuedAt = &now

	event := outbox.DomainEvent{
		EventType:     enums.EventMaterialRequestIssued,
		AggregateType: enums.AggregateMaterialRequest,
		AggregateID:   req.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, ProjectID: &req.ProjectID},
		Data: payloads.MaterialRequestIssuedEvent{
			RequestID:   req.ID,
			ProjectID:   req.ProjectID,
			RequestedBy: req.RequestedBy,
			IssuedBy:    actorID,
			WarehouseID: warehouse.ID,
			Lines:       lines,
			TotalCost:   result.TotalCost,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit material_request_issued")
	}

	result.Request = req
	return result, nil
}

// lockOrder returns indexes into items sorted by material id, then position.
func lockOrder(items []models.MaterialRequestItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bytes.Compare(items[order[a]].MaterialID[:], items[order[b]].MaterialID[:]) < 0
	})
	return order
}

const (
	sqlStateDeadlock      = "40P01"
	sqlStateSerialization = "40001"
	txRetries             = 3
)

func txRetryBackoff() retry.Backoff {
	b := retry.NewExponential(25 * time.Millisecond)
	return retry.WithMaxRetries(txRetries, retry.WithJitter(10*time.Millisecond, b))
}

// isTxConflict reports whether Postgres aborted the transaction for a
// deadlock or serialization failure, which is safe to run again.
func isTxConflict(err error) bool {
	if err == nil {
		return false
	}
	pg := pkgerrors.Diagnose(err).Postgres
	if pg == nil {
		return false
	}
	return pg.SQLState == sqlStateDeadlock || pg.SQLState == sqlStateSerialization
}

// LowStockDedupeKey scopes low-stock alerts to one per warehouse, material
// and UTC day.
func LowStockDedupeKey(warehouseID, materialID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("low_stock:%s:%s:%s", warehouseID, materialID, at.UTC().Format("2006-01-02"))
}

// LowStockEvent builds the outbox event for a record at or below its alert.
func LowStockEvent(warehouseID uuid.UUID, material models.Material, qty decimal.Decimal, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   material.ID,
		DedupeKey:     LowStockDedupeKey(warehouseID, material.ID, at),
		Data: payloads.InventoryLowStockEvent{
			WarehouseID:   warehouseID,
			MaterialID:    material.ID,
			MaterialName:  material.Name,
			Quantity:      qty,
			AlertQuantity: material.AlertQuantity,
		},
	}
}

func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, actorID, warehouseID uuid.UUID, material models.Material, qty decimal.Decimal) error {
	event := LowStockEvent(warehouseID, material, qty, time.Now())
	event.Actor = &outbox.ActorRef{UserID: actorID}
	if _, err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory_low_stock")
	}
	return nil
}

func namedShortage(material models.Material, cause *pkgerrors.Error) error {
	details, _ := cause.Details().(map[string]any)
	if details == nil {
		details = map[string]any{}
	}
	details["material_name"] = material.Name
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock for %s: requested %v, available %v",
		material.Name, details["requested"], details["available"]).WithDetails(details)
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeIssued
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeStateConflict:
		return metrics.OutcomeInvalidState
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
