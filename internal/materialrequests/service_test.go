package materialrequests

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
)

type fixture struct {
	conn      *gorm.DB
	svc       Service
	project   models.Project
	cement    models.Material
	steel     models.Material
	requester uuid.UUID
	manager   uuid.UUID
}

func newFixture(t *testing.T, emitter outboxPublisher) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	if emitter == nil {
		emitter = outbox.NewService(outbox.NewRepository(conn), nil)
	}
	svc, err := NewService(NewRepository(conn), catalog.NewRepository(conn), client, emitter)
	require.NoError(t, err)
	return fixture{
		conn:      conn,
		svc:       svc,
		project:   dbtest.SeedProject(t, conn, "Tower", nil),
		cement:    dbtest.SeedMaterial(t, conn, "Cement", dbtest.MaterialOpts{}),
		steel:     dbtest.SeedMaterial(t, conn, "Steel", dbtest.MaterialOpts{}),
		requester: uuid.New(),
		manager:   uuid.New(),
	}
}

func (f fixture) create(t *testing.T, lines ...LineItem) *models.MaterialRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), CreateInput{ProjectID: f.project.ID, RequestedBy: f.requester, Items: lines, Notes: "for slab"})
	require.NoError(t, err)
	return req
}

func outboxTypes(t *testing.T, conn *gorm.DB, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&rows).Error)
	types := make([]enums.OutboxEventType, len(rows))
	for i, row := range rows {
		types[i] = row.EventType
	}
	return types
}

func TestCreatePersistsPendingRequestAndEvent(t *testing.T) {
	f := newFixture(t, nil)
	req := f.create(t,
		LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("50")},
		LineItem{MaterialID: f.steel.ID, Quantity: dbtest.Qty("3")},
		LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("5")},
	)
	require.Equal(t, enums.MaterialRequestPending, req.Status)

	loaded, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	require.Equal(t, f.cement.ID, loaded.Items[0].MaterialID)
	require.True(t, loaded.Items[0].Quantity.Equal(dbtest.Qty("55")))
	require.Equal(t, 1, loaded.Items[1].Position)
	require.Equal(t, []enums.OutboxEventType{enums.EventMaterialRequestCreated}, outboxTypes(t, f.conn, req.ID))
}

func TestCreateChecksProjectThenLinesThenMaterials(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{ProjectID: uuid.New(), RequestedBy: f.requester})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "missing project wins over empty lines: %v", err)

	_, err = f.svc.Create(ctx, CreateInput{ProjectID: f.project.ID, RequestedBy: f.requester})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.Create(ctx, CreateInput{
		ProjectID:   f.project.ID,
		RequestedBy: f.requester,
		Items:       []LineItem{{MaterialID: uuid.New(), Quantity: dbtest.Qty("1")}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.MaterialRequest{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateRejectsInactiveMaterial(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.conn.Model(&f.steel).Update("is_active", false).Error)

	_, err := f.svc.Create(context.Background(), CreateInput{
		ProjectID:   f.project.ID,
		RequestedBy: f.requester,
		Items:       []LineItem{{MaterialID: f.steel.ID, Quantity: dbtest.Qty("1")}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	require.Contains(t, err.Error(), "Steel")
}

func TestApproveThenRejectIsInvalidState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("10")})

	approved, err := f.svc.Approve(ctx, req.ID, f.manager)
	require.NoError(t, err)
	require.Equal(t, enums.MaterialRequestApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.Equal(t, f.manager, *approved.ApprovedBy)

	_, err = f.svc.Reject(ctx, req.ID, f.manager, "late")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	_, err = f.svc.Approve(ctx, req.ID, f.manager)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	require.Equal(t, []enums.OutboxEventType{
		enums.EventMaterialRequestCreated,
		enums.EventMaterialRequestApproved,
	}, outboxTypes(t, f.conn, req.ID))
}

func TestRejectAppendsReason(t *testing.T) {
	f := newFixture(t, nil)
	req := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("10")})

	rejected, err := f.svc.Reject(context.Background(), req.ID, f.manager, " over budget ")
	require.NoError(t, err)
	require.Equal(t, enums.MaterialRequestRejected, rejected.Status)
	require.Equal(t, "for slab\nRejection reason: over budget", rejected.Notes)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, rejected.Notes, stored.Notes)
}

func TestAppendRejectionReason(t *testing.T) {
	require.Equal(t, "Rejection reason: x", appendRejectionReason("", "x"))
	require.Equal(t, "a\nRejection reason: x", appendRejectionReason("a", "x"))
	require.Equal(t, "a", appendRejectionReason("a", ""))
}

func TestTransitionsOnMissingRequest(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Approve(context.Background(), uuid.New(), f.manager)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentApproveAndRejectOnlyOneWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("1")})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = f.svc.Approve(ctx, req.ID, f.manager) }()
	go func() { defer wg.Done(); _, errs[1] = f.svc.Reject(ctx, req.ID, f.manager, "no") }()
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	}
	require.Equal(t, 1, wins)
	require.Len(t, outboxTypes(t, f.conn, req.ID), 2)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox down")
}

func TestEmitFailureRollsBackTransition(t *testing.T) {
	f := newFixture(t, failingEmitter{})
	req := dbtest.SeedRequest(t, f.conn, f.project.ID, f.requester, enums.MaterialRequestPending,
		models.MaterialRequestItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("1")})

	_, err := f.svc.Approve(context.Background(), req.ID, f.manager)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MaterialRequestPending, stored.Status)
	require.Nil(t, stored.ApprovedBy)
}

func TestUpdateOnlyWhilePendingAndByRequester(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("10")})
	notes := "revised"

	_, err := f.svc.Update(ctx, req.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleSiteEngineer}, UpdateInput{Notes: &notes})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	updated, err := f.svc.Update(ctx, req.ID, Actor{UserID: f.requester, Role: enums.UserRoleSiteEngineer}, UpdateInput{
		Items: []LineItem{{MaterialID: f.steel.ID, Quantity: dbtest.Qty("4")}},
		Notes: &notes,
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, f.steel.ID, updated.Items[0].MaterialID)
	require.Equal(t, "revised", updated.Notes)

	_, err = f.svc.Approve(ctx, req.ID, f.manager)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, req.ID, Actor{UserID: f.requester}, UpdateInput{Notes: &notes})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestDeletePendingOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := Actor{UserID: f.requester, Role: enums.UserRoleSiteEngineer}

	pending := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("1")})
	require.NoError(t, f.svc.Delete(ctx, pending.ID, owner))
	_, err := f.svc.Get(ctx, pending.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	approved := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("1")})
	_, err = f.svc.Approve(ctx, approved.ID, f.manager)
	require.NoError(t, err)
	err = f.svc.Delete(ctx, approved.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("1")})
	f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("2")})
	f.create(t, LineItem{MaterialID: f.cement.ID, Quantity: dbtest.Qty("3")})
	_, err := f.svc.Approve(ctx, first.ID, f.manager)
	require.NoError(t, err)

	pending := enums.MaterialRequestPending
	page, err := f.svc.List(ctx, ListParams{Status: &pending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.Cursor)

	rest, err := f.svc.List(ctx, ListParams{Status: &pending, Limit: 1, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.Cursor)
	require.NotEqual(t, page.Items[0].ID, rest.Items[0].ID)

	bogus := enums.MaterialRequestStatus("fulfilled")
	_, err = f.svc.List(ctx, ListParams{Status: &bogus})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	all, err := f.svc.List(ctx, ListParams{ProjectID: &f.project.ID, RequestedBy: &f.requester})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	require.True(t, strings.HasPrefix(all.Items[0].Notes, "for slab"))
}
