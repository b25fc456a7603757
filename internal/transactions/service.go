package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// RecordInput describes one stock movement. TotalCost is derived when zero.
type RecordInput struct {
	ProjectID   uuid.UUID
	MaterialID  uuid.UUID
	WarehouseID uuid.UUID
	Type        enums.MaterialTransactionType
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	RequestID   *uuid.UUID
	PerformedBy uuid.UUID
}

type Filter struct {
	ProjectID  *uuid.UUID
	MaterialID *uuid.UUID
	RequestID  *uuid.UUID
	Type       *enums.MaterialTransactionType
	Limit      int
	Cursor     string
}

type Page struct {
	Items  []models.MaterialTransaction `json:"items"`
	Cursor string                       `json:"cursor"`
}

// Service is the append-only material transaction log.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.MaterialTransaction, error)
	List(ctx context.Context, filter Filter) (*Page, error)
	SumIssued(ctx context.Context, projectID uuid.UUID) ([]MaterialTotal, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.MaterialTransaction, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", input.Type)
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction quantity must be positive")
	}
	if input.UnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}
	if input.ProjectID == uuid.Nil || input.MaterialID == uuid.Nil || input.WarehouseID == uuid.Nil || input.PerformedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project, material, warehouse and actor are required")
	}
	total := input.UnitCost.Mul(input.Quantity)
	if !input.TotalCost.IsZero() && !input.TotalCost.Equal(total) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "total cost %s does not match unit cost x quantity %s",
			input.TotalCost.String(), total.String())
	}

	txn := &models.MaterialTransaction{
		ProjectID:   input.ProjectID,
		MaterialID:  input.MaterialID,
		WarehouseID: input.WarehouseID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		UnitCost:    input.UnitCost,
		TotalCost:   total,
		RequestID:   input.RequestID,
		PerformedBy: input.PerformedBy,
	}
	if err := s.repo.Insert(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record material transaction")
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, filter Filter) (*Page, error) {
	query := listFilter{
		ProjectID:  filter.ProjectID,
		MaterialID: filter.MaterialID,
		RequestID:  filter.RequestID,
		Type:       filter.Type,
		Limit:      filter.Limit,
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", *filter.Type)
	}
	if filter.Cursor != "" {
		cursor, err := pagination.ParseCursor(filter.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list material transactions")
	}
	page := &Page{Items: rows}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// SumIssued aggregates the log per material: issues minus returns.
func (s *service) SumIssued(ctx context.Context, projectID uuid.UUID) ([]MaterialTotal, error) {
	rows, err := s.repo.SumByMaterial(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum material transactions")
	}
	return rows, nil
}
