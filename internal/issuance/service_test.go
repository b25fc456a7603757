package issuance

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/materialrequests"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
)

type harness struct {
	conn      *gorm.DB
	svc       Service
	rollup    rollup.Service
	main      models.Warehouse
	project   models.Project
	requester uuid.UUID
	keeper    uuid.UUID
}

type harnessOption func(*ServiceParams)

func newHarness(t *testing.T, opts ...harnessOption) harness {
	t.Helper()
	client, conn := dbtest.Client(t)

	ledger, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)
	totals, err := rollup.NewService(rollup.NewRepository(conn), ledger)
	require.NoError(t, err)
	stock, err := inventory.NewService(inventory.NewRepository(conn), catalog.NewRepository(conn), client)
	require.NoError(t, err)

	params := ServiceParams{
		TX:           client,
		Requests:     materialrequests.NewRepository(conn),
		Catalog:      catalog.NewRepository(conn),
		Inventory:    stock,
		Transactions: ledger,
		Rollup:       totals,
		Outbox:       outbox.NewService(outbox.NewRepository(conn), nil),
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return harness{
		conn:      conn,
		svc:       svc,
		rollup:    totals,
		main:      dbtest.SeedWarehouse(t, conn, "Main", enums.WarehouseMain),
		project:   dbtest.SeedProject(t, conn, "Tower", nil),
		requester: uuid.New(),
		keeper:    uuid.New(),
	}
}

func (h harness) approved(t *testing.T, lines ...models.MaterialRequestItem) models.MaterialRequest {
	t.Helper()
	return dbtest.SeedRequest(t, h.conn, h.project.ID, h.requester, enums.MaterialRequestApproved, lines...)
}

func line(materialID uuid.UUID, qty string) models.MaterialRequestItem {
	return models.MaterialRequestItem{MaterialID: materialID, Quantity: dbtest.Qty(qty)}
}

func (h harness) transactionsFor(t *testing.T, requestID uuid.UUID) []models.MaterialTransaction {
	t.Helper()
	var rows []models.MaterialTransaction
	require.NoError(t, h.conn.Where("request_id = ?", requestID).Find(&rows).Error)
	return rows
}

func (h harness) events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func (h harness) status(t *testing.T, requestID uuid.UUID) enums.MaterialRequestStatus {
	t.Helper()
	var req models.MaterialRequest
	require.NoError(t, h.conn.First(&req, "id = ?", requestID).Error)
	return req.Status
}

func TestIssueCementScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{Unit: "bag", Prices: []decimal.Decimal{dbtest.Qty("5"), dbtest.Qty("4")}})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	req := h.approved(t, line(cement.ID, "50"))

	res, err := h.svc.Issue(ctx, req.ID, h.keeper)
	require.NoError(t, err)
	require.Equal(t, enums.MaterialRequestIssued, res.Request.Status)
	require.Equal(t, h.main.ID, res.WarehouseID)
	require.Len(t, res.Transactions, 1)
	require.True(t, res.Transactions[0].UnitCost.Equal(dbtest.Qty("5")), "primary supplier price is the snapshot")
	require.True(t, res.TotalCost.Equal(dbtest.Qty("250")))

	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("50")))
	require.Equal(t, enums.MaterialRequestIssued, h.status(t, req.ID))

	row, err := h.rollup.Get(ctx, h.project.ID, cement.ID)
	require.NoError(t, err)
	require.True(t, row.IssuedQuantity.Equal(dbtest.Qty("50")))
	require.True(t, row.TotalCost.Equal(dbtest.Qty("250")))

	_, err = h.svc.Issue(ctx, req.ID, h.keeper)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("50")))
	require.Len(t, h.transactionsFor(t, req.ID), 1)
	require.Len(t, h.events(t, enums.EventMaterialRequestIssued), 1)
}

func TestIssueSteelScenarioInsufficientStock(t *testing.T) {
	h := newHarness(t)
	steel := dbtest.SeedMaterial(t, h.conn, "Steel", dbtest.MaterialOpts{Unit: "ton"})
	dbtest.SeedStock(t, h.conn, h.main.ID, steel.ID, dbtest.Qty("5"))
	req := h.approved(t, line(steel.ID, "10"))

	_, err := h.svc.Issue(context.Background(), req.ID, h.keeper)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	require.Contains(t, err.Error(), "Steel")
	details := pkgerrors.As(err).Details().(map[string]any)
	require.Equal(t, "5", details["available"])

	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, steel.ID).Equal(dbtest.Qty("5")))
	require.Empty(t, h.transactionsFor(t, req.ID))
	require.Equal(t, enums.MaterialRequestApproved, h.status(t, req.ID))
	require.Empty(t, h.events(t, enums.EventMaterialRequestIssued))
}

func TestIssueIsAtomicAcrossLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{Prices: []decimal.Decimal{dbtest.Qty("5")}})
	steel := dbtest.SeedMaterial(t, h.conn, "Steel", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	dbtest.SeedStock(t, h.conn, h.main.ID, steel.ID, dbtest.Qty("1"))
	req := h.approved(t, line(cement.ID, "40"), line(steel.ID, "2"))

	_, err := h.svc.Issue(ctx, req.ID, h.keeper)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("100")), "first line must roll back")
	require.Empty(t, h.transactionsFor(t, req.ID))
	_, err = h.rollup.Get(ctx, h.project.ID, cement.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "rollup must roll back: %v", err)
}

func TestIssueRejectsNonApproved(t *testing.T) {
	h := newHarness(t)
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))

	for _, status := range []enums.MaterialRequestStatus{enums.MaterialRequestPending, enums.MaterialRequestRejected} {
		req := dbtest.SeedRequest(t, h.conn, h.project.ID, h.requester, status, line(cement.ID, "1"))
		_, err := h.svc.Issue(context.Background(), req.ID, h.keeper)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "%s: got %v", status, err)
	}

	_, err := h.svc.Issue(context.Background(), uuid.New(), h.keeper)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("100")))
}

func TestConcurrentIssueOfSameRequestIsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	req := h.approved(t, line(cement.ID, "30"))

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Issue(context.Background(), req.ID, h.keeper)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	}
	require.Equal(t, 1, succeeded)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("70")))
	require.Len(t, h.transactionsFor(t, req.ID), 1)
	require.Len(t, h.events(t, enums.EventMaterialRequestIssued), 1)
}

func TestConcurrentIssuesNeverOversell(t *testing.T) {
	h := newHarness(t)
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("10"))

	requests := make([]models.MaterialRequest, 5)
	for i := range requests {
		requests[i] = h.approved(t, line(cement.ID, "3"))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(requests))
	for i, req := range requests {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.svc.Issue(context.Background(), id, h.keeper)
		}(i, req.ID)
	}
	wg.Wait()

	issued, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			issued++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	require.Equal(t, 3, issued)
	require.Equal(t, 2, short)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("1")))
}

func TestLedgerMatchesRollupAndStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{Prices: []decimal.Decimal{dbtest.Qty("5")}})
	steel := dbtest.SeedMaterial(t, h.conn, "Steel", dbtest.MaterialOpts{Prices: []decimal.Decimal{dbtest.Qty("120"), dbtest.Qty("99")}})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	dbtest.SeedStock(t, h.conn, h.main.ID, steel.ID, dbtest.Qty("20"))

	for _, lines := range [][]models.MaterialRequestItem{
		{line(cement.ID, "10"), line(steel.ID, "2")},
		{line(cement.ID, "15")},
		{line(steel.ID, "3.5")},
	} {
		req := h.approved(t, lines...)
		_, err := h.svc.Issue(ctx, req.ID, h.keeper)
		require.NoError(t, err)
	}

	drift, err := h.rollup.Reconcile(ctx, h.project.ID)
	require.NoError(t, err)
	require.Empty(t, drift)

	steelRow, err := h.rollup.Get(ctx, h.project.ID, steel.ID)
	require.NoError(t, err)
	require.True(t, steelRow.IssuedQuantity.Equal(dbtest.Qty("5.5")))
	require.True(t, steelRow.TotalCost.Equal(dbtest.Qty("660")))
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, steel.ID).Equal(dbtest.Qty("14.5")))
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("75")))
}

func TestIssueUsesDedicatedWarehouse(t *testing.T) {
	h := newHarness(t)
	site := dbtest.SeedWarehouse(t, h.conn, "Site A", enums.WarehouseProject)
	project := dbtest.SeedProject(t, h.conn, "Mall", &site.ID)
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	dbtest.SeedStock(t, h.conn, site.ID, cement.ID, dbtest.Qty("20"))
	req := dbtest.SeedRequest(t, h.conn, project.ID, h.requester, enums.MaterialRequestApproved, line(cement.ID, "5"))

	res, err := h.svc.Issue(context.Background(), req.ID, h.keeper)
	require.NoError(t, err)
	require.Equal(t, site.ID, res.WarehouseID)
	require.True(t, dbtest.StockOf(t, h.conn, site.ID, cement.ID).Equal(dbtest.Qty("15")))
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("100")))
}

func TestIssueEmitsLowStockOnCrossingOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{AlertQuantity: dbtest.Qty("60")})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))

	first := h.approved(t, line(cement.ID, "30"))
	res, err := h.svc.Issue(ctx, first.ID, h.keeper)
	require.NoError(t, err)
	require.Empty(t, res.LowStock)

	second := h.approved(t, line(cement.ID, "20"))
	res, err = h.svc.Issue(ctx, second.ID, h.keeper)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{cement.ID}, res.LowStock)

	third := h.approved(t, line(cement.ID, "5"))
	res, err = h.svc.Issue(ctx, third.ID, h.keeper)
	require.NoError(t, err)
	require.Empty(t, res.LowStock, "already below alert; not a crossing")

	events := h.events(t, enums.EventInventoryLowStock)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].DedupeKey)
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *recordingLocker) Obtain(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func TestIssueTakesRequestLockAndToleratesBusyLock(t *testing.T) {
	locker := &recordingLocker{err: ErrLockNotObtained}
	h := newHarness(t, func(p *ServiceParams) { p.Locker = locker })
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("10"))
	req := h.approved(t, line(cement.ID, "1"))

	_, err := h.svc.Issue(context.Background(), req.ID, h.keeper)
	require.NoError(t, err)
	require.Equal(t, []string{"issuance:" + req.ID.String()}, locker.keys)
}

func TestReturnRestoresStockAndRollup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{Prices: []decimal.Decimal{dbtest.Qty("5")}})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("100"))
	req := h.approved(t, line(cement.ID, "50"))
	_, err := h.svc.Issue(ctx, req.ID, h.keeper)
	require.NoError(t, err)

	res, err := h.svc.Return(ctx, ReturnInput{ProjectID: h.project.ID, MaterialID: cement.ID, Quantity: dbtest.Qty("10"), ActorID: h.keeper, RequestID: &req.ID})
	require.NoError(t, err)
	require.Equal(t, enums.MaterialTransactionReturn, res.Transaction.Type)
	require.True(t, res.Quantity.Equal(dbtest.Qty("60")))

	row, err := h.rollup.Get(ctx, h.project.ID, cement.ID)
	require.NoError(t, err)
	require.True(t, row.IssuedQuantity.Equal(dbtest.Qty("40")))
	require.True(t, row.TotalCost.Equal(dbtest.Qty("200")))

	drift, err := h.rollup.Reconcile(ctx, h.project.ID)
	require.NoError(t, err)
	require.Empty(t, drift)
	require.Len(t, h.events(t, enums.EventMaterialReturned), 1)

	_, err = h.svc.Return(ctx, ReturnInput{ProjectID: h.project.ID, MaterialID: cement.ID, Quantity: dbtest.Qty("41"), ActorID: h.keeper})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("60")))
}

func TestReturnAgainstUnissuedRequest(t *testing.T) {
	h := newHarness(t)
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	req := h.approved(t, line(cement.ID, "5"))

	_, err := h.svc.Return(context.Background(), ReturnInput{ProjectID: h.project.ID, MaterialID: cement.ID, Quantity: dbtest.Qty("1"), ActorID: h.keeper, RequestID: &req.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestReturnRejectsQuantityBeyondStoredScale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, h.conn, "Cement", dbtest.MaterialOpts{})
	dbtest.SeedStock(t, h.conn, h.main.ID, cement.ID, dbtest.Qty("10"))
	req := h.approved(t, line(cement.ID, "5"))
	_, err := h.svc.Issue(ctx, req.ID, h.keeper)
	require.NoError(t, err)

	_, err = h.svc.Return(ctx, ReturnInput{ProjectID: h.project.ID, MaterialID: cement.ID, Quantity: dbtest.Qty("0.00001"), ActorID: h.keeper})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	require.True(t, dbtest.StockOf(t, h.conn, h.main.ID, cement.ID).Equal(dbtest.Qty("5")))
}
