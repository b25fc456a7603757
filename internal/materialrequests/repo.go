package materialrequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Repository persists material requests and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.MaterialRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MaterialRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.MaterialRequest, error)
	List(ctx context.Context, params listQuery) ([]models.MaterialRequest, *pagination.Cursor, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.MaterialRequestStatus, fields map[string]any) (bool, error)
	ReplaceItems(ctx context.Context, id uuid.UUID, items []models.MaterialRequestItem) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	DeletePending(ctx context.Context, id uuid.UUID) (bool, error)
}

type listQuery struct {
	Status      *enums.MaterialRequestStatus
	ProjectID   *uuid.UUID
	RequestedBy *uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
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

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repository) Create(ctx context.Context, req *models.MaterialRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MaterialRequest, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate row-locks the request until the surrounding tx ends.
// sqlite has no row locks and ignores the clause.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.MaterialRequest, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(query, id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.MaterialRequest, error) {
	var req models.MaterialRequest
	err := query.
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) List(ctx context.Context, params listQuery) ([]models.MaterialRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.MaterialRequest{}).Preload("Items", orderedItems)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ProjectID != nil {
		query = query.Where("project_id = ?", *params.ProjectID)
	}
	if params.RequestedBy != nil {
		query = query.Where("requested_by = ?", *params.RequestedBy)
	}

	var rows []models.MaterialRequest
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(m models.MaterialRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

// Transition moves the request from one status to another only if it is
// still in the expected status. The bool reports whether a row changed.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.MaterialRequestStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.MaterialRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReplaceItems(ctx context.Context, id uuid.UUID, items []models.MaterialRequestItem) error {
	if err := r.db.WithContext(ctx).Where("request_id = ?", id).Delete(&models.MaterialRequestItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].RequestID = id
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	return r.db.WithContext(ctx).
		Model(&models.MaterialRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"notes": notes, "updated_at": time.Now().UTC()}).Error
}

// DeletePending removes a request still awaiting approval.
func (r *repository) DeletePending(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.MaterialRequestPending).
		Delete(&models.MaterialRequest{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := r.db.WithContext(ctx).Where("request_id = ?", id).Delete(&models.MaterialRequestItem{}).Error
	return err == nil, err
}
