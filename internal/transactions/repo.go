package transactions

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Repository is insert-and-read only; the log is never updated in place.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, txn *models.MaterialTransaction) error
	List(ctx context.Context, filter listFilter) ([]models.MaterialTransaction, *pagination.Cursor, error)
	SumByMaterial(ctx context.Context, projectID uuid.UUID) ([]MaterialTotal, error)
}

type listFilter struct {
	ProjectID  *uuid.UUID
	MaterialID *uuid.UUID
	RequestID  *uuid.UUID
	Type       *enums.MaterialTransactionType
	Limit      int
	Cursor     *pagination.Cursor
}

// MaterialTotal is the net issued quantity and cost of one material on one
// project, with returns subtracted.
type MaterialTotal struct {
	MaterialID uuid.UUID       `gorm:"column:material_id" json:"material_id"`
	Quantity   decimal.Decimal `gorm:"column:quantity" json:"quantity"`
	TotalCost  decimal.Decimal `gorm:"column:total_cost" json:"total_cost"`
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

func (r *repository) Insert(ctx context.Context, txn *models.MaterialTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) List(ctx context.Context, filter listFilter) ([]models.MaterialTransaction, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.MaterialTransaction{})
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.MaterialID != nil {
		query = query.Where("material_id = ?", *filter.MaterialID)
	}
	if filter.RequestID != nil {
		query = query.Where("request_id = ?", *filter.RequestID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var rows []models.MaterialTransaction
	if err := pagination.Keyset(query, filter.Cursor, filter.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, filter.Limit, func(m models.MaterialTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

func (r *repository) SumByMaterial(ctx context.Context, projectID uuid.UUID) ([]MaterialTotal, error) {
	var rows []MaterialTotal
	err := r.db.WithContext(ctx).
		Model(&models.MaterialTransaction{}).
		Select(`material_id,
			SUM(CASE WHEN type = ? THEN quantity ELSE -quantity END) AS quantity,
			SUM(CASE WHEN type = ? THEN total_cost ELSE -total_cost END) AS total_cost`,
			enums.MaterialTransactionIssue, enums.MaterialTransactionIssue).
		Where("project_id = ?", projectID).
		Group("material_id").
		Order("material_id ASC").
		Scan(&rows).Error
	return rows, err
}
