package rollup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, projectID, materialID uuid.UUID, qty, cost, unitCost decimal.Decimal) error
	DecrementIssued(ctx context.Context, projectID, materialID uuid.UUID, qty, cost decimal.Decimal) (bool, error)
	SetPlanned(ctx context.Context, projectID, materialID uuid.UUID, planned decimal.Decimal) error
	Find(ctx context.Context, projectID, materialID uuid.UUID) (*models.ProjectMaterial, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMaterial, error)
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

var projectMaterialKey = []clause.Column{{Name: "project_id"}, {Name: "material_id"}}

func (r *repository) Increment(ctx context.Context, projectID, materialID uuid.UUID, qty, cost, unitCost decimal.Decimal) error {
	row := models.ProjectMaterial{
		ProjectID:      projectID,
		MaterialID:     materialID,
		IssuedQuantity: qty,
		UnitCost:       unitCost,
		TotalCost:      cost,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: projectMaterialKey,
		DoUpdates: clause.Assignments(map[string]any{
			"issued_quantity": gorm.Expr("project_materials.issued_quantity + ?", qty),
			"total_cost":      gorm.Expr("project_materials.total_cost + ?", cost),
			"unit_cost":       unitCost,
			"updated_at":      time.Now().UTC(),
		}),
	}).Create(&row).Error
}

// DecrementIssued backs out a return. It refuses to drive issued quantity
// below zero and reports false in that case.
func (r *repository) DecrementIssued(ctx context.Context, projectID, materialID uuid.UUID, qty, cost decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE project_materials
		SET issued_quantity = issued_quantity - ?,
			total_cost = total_cost - ?,
			updated_at = ?
		WHERE project_id = ? AND material_id = ? AND issued_quantity >= ?
	`, qty, cost, time.Now().UTC(), projectID, materialID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetPlanned(ctx context.Context, projectID, materialID uuid.UUID, planned decimal.Decimal) error {
	row := models.ProjectMaterial{ProjectID: projectID, MaterialID: materialID, PlannedQuantity: planned}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: projectMaterialKey,
		DoUpdates: clause.Assignments(map[string]any{
			"planned_quantity": planned,
			"updated_at":       time.Now().UTC(),
		}),
	}).Create(&row).Error
}

func (r *repository) Find(ctx context.Context, projectID, materialID uuid.UUID) (*models.ProjectMaterial, error) {
	var row models.ProjectMaterial
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND material_id = ?", projectID, materialID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMaterial, error) {
	var rows []models.ProjectMaterial
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("material_id ASC").
		Find(&rows).Error
	return rows, err
}
