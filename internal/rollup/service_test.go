package rollup

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

type fixture struct {
	conn    *gorm.DB
	svc     Service
	log     transactions.Service
	project uuid.UUID
	wh      uuid.UUID
	cement  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	log, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), log)
	require.NoError(t, err)
	return fixture{
		conn:    conn,
		svc:     svc,
		log:     log,
		project: dbtest.SeedProject(t, conn, "Tower", nil).ID,
		wh:      dbtest.SeedWarehouse(t, conn, "Main", enums.WarehouseMain).ID,
		cement:  dbtest.SeedMaterial(t, conn, "Cement", dbtest.MaterialOpts{}).ID,
	}
}

func TestIncrementAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("50"), dbtest.Qty("250"), dbtest.Qty("5")))
	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("10"), dbtest.Qty("60"), dbtest.Qty("6")))

	row, err := f.svc.Get(ctx, f.project, f.cement)
	require.NoError(t, err)
	require.True(t, row.IssuedQuantity.Equal(dbtest.Qty("60")))
	require.True(t, row.TotalCost.Equal(dbtest.Qty("310")))
	require.True(t, row.UnitCost.Equal(dbtest.Qty("6")), "unit cost tracks the latest snapshot")
}

func TestPlanKeepsIssuedTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("5"), dbtest.Qty("5"), dbtest.Qty("1")))

	row, err := f.svc.Plan(ctx, f.project, f.cement, dbtest.Qty("200"))
	require.NoError(t, err)
	require.True(t, row.PlannedQuantity.Equal(dbtest.Qty("200")))
	require.True(t, row.IssuedQuantity.Equal(dbtest.Qty("5")))

	_, err = f.svc.Plan(ctx, f.project, f.cement, dbtest.Qty("-1"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("5"), dbtest.Qty("50"), dbtest.Qty("10")))

	err := f.svc.Decrement(ctx, f.project, f.cement, dbtest.Qty("6"), dbtest.Qty("60"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	require.NoError(t, f.svc.Decrement(ctx, f.project, f.cement, dbtest.Qty("5"), dbtest.Qty("50")))
	row, err := f.svc.Get(ctx, f.project, f.cement)
	require.NoError(t, err)
	require.True(t, row.IssuedQuantity.IsZero())
}

func TestGetMissingIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), f.project, f.cement)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	_, err := f.log.Record(ctx, transactions.RecordInput{
		ProjectID: f.project, MaterialID: f.cement, WarehouseID: f.wh,
		Type: enums.MaterialTransactionIssue, Quantity: dbtest.Qty("50"), UnitCost: dbtest.Qty("5"), PerformedBy: actor,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("50"), dbtest.Qty("250"), dbtest.Qty("5")))

	drift, err := f.svc.Reconcile(ctx, f.project)
	require.NoError(t, err)
	require.Empty(t, drift)

	steel := dbtest.SeedMaterial(t, f.conn, "Steel", dbtest.MaterialOpts{}).ID
	_, err = f.log.Record(ctx, transactions.RecordInput{
		ProjectID: f.project, MaterialID: steel, WarehouseID: f.wh,
		Type: enums.MaterialTransactionIssue, Quantity: dbtest.Qty("2"), UnitCost: dbtest.Qty("100"), PerformedBy: actor,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Increment(ctx, f.project, f.cement, dbtest.Qty("1"), dbtest.Qty("5"), dbtest.Qty("5")))

	drift, err = f.svc.Reconcile(ctx, f.project)
	require.NoError(t, err)
	require.Len(t, drift, 2)
	byMaterial := map[uuid.UUID]Drift{}
	for _, d := range drift {
		byMaterial[d.MaterialID] = d
	}
	require.True(t, byMaterial[f.cement].RollupQuantity.Equal(dbtest.Qty("51")))
	require.True(t, byMaterial[f.cement].LedgerQuantity.Equal(dbtest.Qty("50")))
	require.True(t, byMaterial[steel].RollupQuantity.IsZero())
	require.True(t, byMaterial[steel].LedgerCost.Equal(dbtest.Qty("200")))
}
