package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Repository defines persistence for materials, projects and warehouses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMaterial(ctx context.Context, material *models.Material) error
	FindMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error)
	FindMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error)
	ListMaterials(ctx context.Context, params listMaterialsParams) ([]models.Material, *pagination.Cursor, error)
	CreateProject(ctx context.Context, project *models.Project) error
	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListActiveProjectIDs(ctx context.Context) ([]uuid.UUID, error)
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	FindMainWarehouse(ctx context.Context) (*models.Warehouse, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listMaterialsParams struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func orderedSuppliers(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repository) CreateMaterial(ctx context.Context, material *models.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *repository) FindMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	err := r.db.WithContext(ctx).
		Preload("Suppliers", orderedSuppliers).
		Where("id = ?", id).
		First(&material).Error
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *repository) FindMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var materials []models.Material
	err := r.db.WithContext(ctx).
		Preload("Suppliers", orderedSuppliers).
		Where("id IN ?", ids).
		Find(&materials).Error
	return materials, err
}

func (r *repository) ListMaterials(ctx context.Context, params listMaterialsParams) ([]models.Material, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Material{}).Preload("Suppliers", orderedSuppliers)
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var rows []models.Material
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(m models.Material) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

func (r *repository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) ListActiveProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *repository) FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *repository) FindMainWarehouse(ctx context.Context) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).
		Where("type = ?", enums.WarehouseMain).
		Order("created_at ASC").
		First(&warehouse).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}
