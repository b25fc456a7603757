package issuance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/payloads"
)

// ReturnInput moves unused material from a project back into its warehouse.
// RequestID optionally ties the return to the issuance it reverses.
type ReturnInput struct {
	ProjectID  uuid.UUID
	MaterialID uuid.UUID
	Quantity   decimal.Decimal
	ActorID    uuid.UUID
	RequestID  *uuid.UUID
}

type ReturnResult struct {
	Transaction models.MaterialTransaction `json:"transaction"`
	Quantity    decimal.Decimal            `json:"warehouse_quantity"`
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*ReturnResult, error) {
	var out *ReturnResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)

		project, err := catalog.LoadProject(ctx, catalogRepo, input.ProjectID)
		if err != nil {
			return err
		}
		materials, err := catalog.LoadMaterials(ctx, catalogRepo, []uuid.UUID{input.MaterialID})
		if err != nil {
			return err
		}
		material := materials[input.MaterialID]
		if input.RequestID != nil {
			if err := s.checkReturnAgainst(ctx, tx, *input.RequestID, input); err != nil {
				return err
			}
		}
		if !input.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "return quantity must be positive")
		}
		if !models.FitsQuantityScale(input.Quantity) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "return quantity allows at most %d decimal places", models.QuantityScale).
				WithDetails(map[string]any{"quantity": input.Quantity.String()})
		}
		warehouse, err := catalog.ResolveWarehouse(ctx, catalogRepo, *project)
		if err != nil {
			return err
		}

		unitCost := catalog.UnitCost(material)
		txn, err := s.ledger.WithTx(tx).Record(ctx, transactions.RecordInput{
			ProjectID:   project.ID,
			MaterialID:  material.ID,
			WarehouseID: warehouse.ID,
			Type:        enums.MaterialTransactionReturn,
			Quantity:    input.Quantity,
			UnitCost:    unitCost,
			RequestID:   input.RequestID,
			PerformedBy: input.ActorID,
		})
		if err != nil {
			return err
		}
		if err := s.rollup.WithTx(tx).Decrement(ctx, project.ID, material.ID, input.Quantity, txn.TotalCost); err != nil {
			return err
		}
		adj, err := s.inventory.WithTx(tx).Adjust(ctx, warehouse.ID, material.ID, input.Quantity)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventMaterialReturned,
			AggregateType: enums.AggregateProject,
			AggregateID:   project.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, ProjectID: &project.ID},
			Data: payloads.MaterialReturnedEvent{
				TransactionID: txn.ID,
				ProjectID:     project.ID,
				MaterialID:    material.ID,
				WarehouseID:   warehouse.ID,
				Quantity:      input.Quantity,
				ReturnedBy:    input.ActorID,
				RequestID:     input.RequestID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit material_returned")
		}
		out = &ReturnResult{Transaction: *txn, Quantity: adj.Quantity}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncReturn()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"project_id":  input.ProjectID.String(),
		"material_id": input.MaterialID.String(),
		"quantity":    input.Quantity.String(),
	}), "material returned")
	return out, nil
}

// checkReturnAgainst requires the referenced request to be issued, to belong
// to the project and to contain the material.
func (s *service) checkReturnAgainst(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, input ReturnInput) error {
	req, err := s.requests.WithTx(tx).FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "material request %s not found", requestID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material request")
	}
	if req.ProjectID != input.ProjectID {
		return pkgerrors.New(pkgerrors.CodeValidation, "request belongs to a different project")
	}
	found := false
	for _, item := range req.Items {
		if item.MaterialID == input.MaterialID {
			found = true
			break
		}
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeValidation, "material was not part of the request")
	}
	if req.Status != enums.MaterialRequestIssued {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only issued requests can take returns")
	}
	return nil
}
