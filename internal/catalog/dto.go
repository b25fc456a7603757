package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// SupplierPriceInput is one supplier quote; order defines priority.
type SupplierPriceInput struct {
	Name  string
	Price decimal.Decimal
}

type CreateMaterialInput struct {
	Name          string
	Unit          string
	AlertQuantity decimal.Decimal
	Suppliers     []SupplierPriceInput
}

type CreateProjectInput struct {
	Name                 string
	WarehouseMode        enums.ProjectWarehouseMode
	DedicatedWarehouseID *uuid.UUID
	ManagerID            *uuid.UUID
}

type CreateWarehouseInput struct {
	Name      string
	Type      enums.WarehouseType
	Location  string
	ProjectID *uuid.UUID
}

type ListMaterialsParams struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Cursor     string
}

type MaterialList struct {
	Items  []models.Material `json:"items"`
	Cursor string            `json:"cursor"`
}
