package rollup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

// TotalsSource is the transaction log aggregate the rollup is checked against.
type TotalsSource interface {
	SumIssued(ctx context.Context, projectID uuid.UUID) ([]transactions.MaterialTotal, error)
}

// Drift is one (project, material) pair where the rollup disagrees with the
// transaction log.
type Drift struct {
	ProjectID      uuid.UUID       `json:"project_id"`
	MaterialID     uuid.UUID       `json:"material_id"`
	RollupQuantity decimal.Decimal `json:"rollup_quantity"`
	LedgerQuantity decimal.Decimal `json:"ledger_quantity"`
	RollupCost     decimal.Decimal `json:"rollup_cost"`
	LedgerCost     decimal.Decimal `json:"ledger_cost"`
}

// Service maintains per-project material totals.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Increment(ctx context.Context, projectID, materialID uuid.UUID, issuedDelta, costDelta, unitCost decimal.Decimal) error
	Decrement(ctx context.Context, projectID, materialID uuid.UUID, qty, cost decimal.Decimal) error
	Plan(ctx context.Context, projectID, materialID uuid.UUID, planned decimal.Decimal) (*models.ProjectMaterial, error)
	Get(ctx context.Context, projectID, materialID uuid.UUID) (*models.ProjectMaterial, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMaterial, error)
	Reconcile(ctx context.Context, projectID uuid.UUID) ([]Drift, error)
}

type service struct {
	repo   Repository
	totals TotalsSource
}

func NewService(repo Repository, totals TotalsSource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rollup repository required")
	}
	if totals == nil {
		return nil, fmt.Errorf("transaction totals source required")
	}
	return &service{repo: repo, totals: totals}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), totals: s.totals}
}

func (s *service) Increment(ctx context.Context, projectID, materialID uuid.UUID, issuedDelta, costDelta, unitCost decimal.Decimal) error {
	if !issuedDelta.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "issued delta must be positive")
	}
	if costDelta.IsNegative() || unitCost.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	}
	if err := s.repo.Increment(ctx, projectID, materialID, issuedDelta, costDelta, unitCost); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment project material")
	}
	return nil
}

func (s *service) Decrement(ctx context.Context, projectID, materialID uuid.UUID, qty, cost decimal.Decimal) error {
	if !qty.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "return quantity must be positive")
	}
	ok, err := s.repo.DecrementIssued(ctx, projectID, materialID, qty, cost)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement project material")
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "cannot return %s: more than was issued to the project", qty.String()).
			WithDetails(map[string]any{"project_id": projectID, "material_id": materialID})
	}
	return nil
}

func (s *service) Plan(ctx context.Context, projectID, materialID uuid.UUID, planned decimal.Decimal) (*models.ProjectMaterial, error) {
	if planned.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "planned quantity must not be negative")
	}
	if err := s.repo.SetPlanned(ctx, projectID, materialID, planned); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "plan project material")
	}
	return s.Get(ctx, projectID, materialID)
}

func (s *service) Get(ctx context.Context, projectID, materialID uuid.UUID) (*models.ProjectMaterial, error) {
	row, err := s.repo.Find(ctx, projectID, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "material %s has no rollup on project %s", materialID, projectID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project material")
	}
	return row, nil
}

func (s *service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMaterial, error) {
	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list project materials")
	}
	return rows, nil
}

// Reconcile compares the rollup with the transaction log and returns every
// material where issued quantity or total cost differ.
func (s *service) Reconcile(ctx context.Context, projectID uuid.UUID) ([]Drift, error) {
	rows, err := s.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totals.SumIssued(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ledger := make(map[uuid.UUID]transactions.MaterialTotal, len(totals))
	for _, t := range totals {
		ledger[t.MaterialID] = t
	}

	var drift []Drift
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		seen[row.MaterialID] = struct{}{}
		t := ledger[row.MaterialID]
		if row.IssuedQuantity.Equal(t.Quantity) && row.TotalCost.Equal(t.TotalCost) {
			continue
		}
		drift = append(drift, Drift{
			ProjectID:      projectID,
			MaterialID:     row.MaterialID,
			RollupQuantity: row.IssuedQuantity,
			LedgerQuantity: t.Quantity,
			RollupCost:     row.TotalCost,
			LedgerCost:     t.TotalCost,
		})
	}
	for _, t := range totals {
		if _, ok := seen[t.MaterialID]; ok {
			continue
		}
		if t.Quantity.IsZero() && t.TotalCost.IsZero() {
			continue
		}
		drift = append(drift, Drift{
			ProjectID:      projectID,
			MaterialID:     t.MaterialID,
			RollupQuantity: decimal.Zero,
			LedgerQuantity: t.Quantity,
			RollupCost:     decimal.Zero,
			LedgerCost:     t.TotalCost,
		})
	}
	return drift, nil
}
