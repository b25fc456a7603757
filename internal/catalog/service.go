package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Service exposes catalog reads and the admin setup writes.
type Service interface {
	GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error)
	GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Material, error)
	ListMaterials(ctx context.Context, params ListMaterialsParams) (*MaterialList, error)
	CreateMaterial(ctx context.Context, input CreateMaterialInput) (*models.Material, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error)
	CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error)
	ResolveWarehouse(ctx context.Context, project models.Project) (*models.Warehouse, error)
}

type service struct {
	repo Repository
}

// NewService wires the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	material, err := s.repo.FindMaterial(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "material %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	return material, nil
}

// GetMaterials loads every id or fails with NotFound naming the first
// missing one.
func (s *service) GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Material, error) {
	return LoadMaterials(ctx, s.repo, ids)
}

// LoadMaterials is GetMaterials against an explicit (possibly tx-bound) repo.
func LoadMaterials(ctx context.Context, repo Repository, ids []uuid.UUID) (map[uuid.UUID]models.Material, error) {
	rows, err := repo.FindMaterials(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load materials")
	}
	byID := make(map[uuid.UUID]models.Material, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "material %s not found", id).
				WithDetails(map[string]any{"material_id": id})
		}
	}
	return byID, nil
}

// LoadActiveMaterials is LoadMaterials that also rejects deactivated
// materials, for callers placing new demand on the catalog.
func LoadActiveMaterials(ctx context.Context, repo Repository, ids []uuid.UUID) (map[uuid.UUID]models.Material, error) {
	byID, err := LoadMaterials(ctx, repo, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if m := byID[id]; !m.IsActive {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "material %s is inactive", m.Name).
				WithDetails(map[string]any{"material_id": id})
		}
	}
	return byID, nil
}

func (s *service) ListMaterials(ctx context.Context, params ListMaterialsParams) (*MaterialList, error) {
	query := listMaterialsParams{
		Search:     params.Search,
		ActiveOnly: params.ActiveOnly,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.ListMaterials(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	out := &MaterialList{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) CreateMaterial(ctx context.Context, input CreateMaterialInput) (*models.Material, error) {
	name := strings.TrimSpace(input.Name)
	unit := strings.TrimSpace(input.Unit)
	if name == "" || unit == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name and unit are required")
	}
	if input.AlertQuantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert quantity must not be negative")
	}

	material := &models.Material{
		Name:          name,
		Unit:          unit,
		AlertQuantity: input.AlertQuantity,
		IsActive:      true,
	}
	for i, supplier := range input.Suppliers {
		if strings.TrimSpace(supplier.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name is required")
		}
		if supplier.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier price must not be negative")
		}
		material.Suppliers = append(material.Suppliers, models.MaterialSupplierPrice{
			SupplierName: strings.TrimSpace(supplier.Name),
			Price:        supplier.Price,
			Position:     i,
		})
	}

	if err := s.repo.CreateMaterial(ctx, material); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_materials_name") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "material %q already exists", name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material")
	}
	return material, nil
}

func (s *service) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return LoadProject(ctx, s.repo, id)
}

// LoadProject maps a missing project to NotFound.
func LoadProject(ctx context.Context, repo Repository, id uuid.UUID) (*models.Project, error) {
	project, err := repo.FindProject(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "project %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}

func (s *service) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project name is required")
	}
	mode := input.WarehouseMode
	if mode == "" {
		mode = enums.ProjectWarehouseShared
	}
	if !mode.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid warehouse mode %q", mode)
	}
	if mode == enums.ProjectWarehouseDedicated && input.DedicatedWarehouseID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dedicated projects need a dedicated warehouse")
	}
	if input.DedicatedWarehouseID != nil {
		if _, err := LoadWarehouse(ctx, s.repo, *input.DedicatedWarehouseID); err != nil {
			return nil, err
		}
	}

	project := &models.Project{
		Name:                 name,
		WarehouseMode:        mode,
		DedicatedWarehouseID: input.DedicatedWarehouseID,
		ManagerID:            input.ManagerID,
		IsActive:             true,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create project")
	}
	return project, nil
}

func (s *service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid warehouse type %q", input.Type)
	}
	if input.Type == enums.WarehouseMain {
		_, err := s.repo.FindMainWarehouse(ctx)
		if err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a main warehouse already exists")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check main warehouse")
		}
	}
	if input.ProjectID != nil {
		if _, err := LoadProject(ctx, s.repo, *input.ProjectID); err != nil {
			return nil, err
		}
	}

	warehouse := &models.Warehouse{
		Name:      name,
		Type:      input.Type,
		Location:  strings.TrimSpace(input.Location),
		ProjectID: input.ProjectID,
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_warehouses_single_main") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a main warehouse already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *service) ResolveWarehouse(ctx context.Context, project models.Project) (*models.Warehouse, error) {
	return ResolveWarehouse(ctx, s.repo, project)
}

// ResolveWarehouse picks the warehouse a project draws stock from: its
// dedicated warehouse when configured that way, otherwise the main one.
func ResolveWarehouse(ctx context.Context, repo Repository, project models.Project) (*models.Warehouse, error) {
	if project.WarehouseMode == enums.ProjectWarehouseDedicated && project.DedicatedWarehouseID != nil {
		return LoadWarehouse(ctx, repo, *project.DedicatedWarehouseID)
	}
	warehouse, err := repo.FindMainWarehouse(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "main warehouse not configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load main warehouse")
	}
	return warehouse, nil
}

// LoadWarehouse maps a missing warehouse to NotFound.
func LoadWarehouse(ctx context.Context, repo Repository, id uuid.UUID) (*models.Warehouse, error) {
	warehouse, err := repo.FindWarehouse(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "warehouse %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse")
	}
	return warehouse, nil
}

// UnitCost is the cost snapshot used for stock movements: the primary
// supplier price, or zero when the material has none.
func UnitCost(material models.Material) decimal.Decimal {
	return material.PrimaryPrice()
}
