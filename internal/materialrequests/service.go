package materialrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the request lifecycle up to approval. Issuing lives in the
// issuance package because it spans inventory and the ledger.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.MaterialRequest, error)
	Approve(ctx context.Context, requestID, approverID uuid.UUID) (*models.MaterialRequest, error)
	Reject(ctx context.Context, requestID, approverID uuid.UUID, reason string) (*models.MaterialRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*models.MaterialRequest, error)
	List(ctx context.Context, params ListParams) (*RequestList, error)
	Update(ctx context.Context, requestID uuid.UUID, actor Actor, input UpdateInput) (*models.MaterialRequest, error)
	Delete(ctx context.Context, requestID uuid.UUID, actor Actor) error
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
	outbox  outboxPublisher
}

func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("material request repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx, outbox: outbox}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.MaterialRequest, error) {
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester is required")
	}
	var created *models.MaterialRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		if _, err := catalog.LoadProject(ctx, catalogRepo, input.ProjectID); err != nil {
			return err
		}
		lines, err := NormalizeLines(input.Items)
		if err != nil {
			return err
		}
		if _, err := catalog.LoadActiveMaterials(ctx, catalogRepo, materialIDs(lines)); err != nil {
			return err
		}

		req := &models.MaterialRequest{
			ProjectID:   input.ProjectID,
			RequestedBy: input.RequestedBy,
			Status:      enums.MaterialRequestPending,
			Notes:       strings.TrimSpace(input.Notes),
			Items:       toItems(lines),
		}
		if err := s.repo.WithTx(tx).Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material request")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventMaterialRequestCreated,
			AggregateType: enums.AggregateMaterialRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: input.RequestedBy, ProjectID: &req.ProjectID},
			Data: payloads.MaterialRequestCreatedEvent{
				RequestID:   req.ID,
				ProjectID:   req.ProjectID,
				RequestedBy: req.RequestedBy,
				Items:       toRequestLines(lines),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit material_request_created")
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Approve(ctx context.Context, requestID, approverID uuid.UUID) (*models.MaterialRequest, error) {
	now := time.Now().UTC()
	return s.transition(ctx, requestID, enums.MaterialRequestApproved, func(req *models.MaterialRequest) (map[string]any, outbox.DomainEvent) {
		req.ApprovedBy = &approverID
		req.ApprovedAt = &now
		return map[string]any{"approved_by": approverID, "approved_at": now}, outbox.DomainEvent{
			EventType:     enums.EventMaterialRequestApproved,
			AggregateType: enums.AggregateMaterialRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: approverID, ProjectID: &req.ProjectID},
			Data: payloads.MaterialRequestApprovedEvent{
				RequestID:   req.ID,
				ProjectID:   req.ProjectID,
				RequestedBy: req.RequestedBy,
				ApprovedBy:  approverID,
			},
		}
	})
}

func (s *service) Reject(ctx context.Context, requestID, approverID uuid.UUID, reason string) (*models.MaterialRequest, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, requestID, enums.MaterialRequestRejected, func(req *models.MaterialRequest) (map[string]any, outbox.DomainEvent) {
		req.Notes = appendRejectionReason(req.Notes, reason)
		return map[string]any{"notes": req.Notes}, outbox.DomainEvent{
			EventType:     enums.EventMaterialRequestRejected,
			AggregateType: enums.AggregateMaterialRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: approverID, ProjectID: &req.ProjectID},
			Data: payloads.MaterialRequestRejectedEvent{
				RequestID:   req.ID,
				ProjectID:   req.ProjectID,
				RequestedBy: req.RequestedBy,
				RejectedBy:  approverID,
				Reason:      reason,
			},
		}
	})
}

func appendRejectionReason(notes, reason string) string {
	if reason == "" {
		return notes
	}
	line := "Rejection reason: " + reason
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

// transition applies a pending → next move. The conditional update makes a
// concurrent loser observe zero affected rows and fail with STATE_CONFLICT.
func (s *service) transition(
	ctx context.Context,
	requestID uuid.UUID,
	next enums.MaterialRequestStatus,
	apply func(req *models.MaterialRequest) (map[string]any, outbox.DomainEvent),
) (*models.MaterialRequest, error) {
	var out *models.MaterialRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := loadRequest(ctx, repo, requestID, true)
		if err != nil {
			return err
		}
		if !req.Status.CanTransitionTo(next) {
			return invalidState(req, next)
		}
		from := req.Status
		fields, event := apply(req)
		ok, err := repo.Transition(ctx, req.ID, from, next, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material request status")
		}
		if !ok {
			return invalidState(req, next)
		}
		req.Status = next
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(event.EventType))
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func invalidState(req *models.MaterialRequest, next enums.MaterialRequestStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move request from %s to %s", req.Status, next).
		WithDetails(map[string]any{"request_id": req.ID, "status": req.Status, "target": next})
}

// loadRequest maps a missing request to NOT_FOUND. lock row-locks it on
// engines that support it.
func loadRequest(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.MaterialRequest, error) {
	var (
		req *models.MaterialRequest
		err error
	)
	if lock {
		req, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		req, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "material request %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material request")
	}
	return req, nil
}

func (s *service) Get(ctx context.Context, requestID uuid.UUID) (*models.MaterialRequest, error) {
	return loadRequest(ctx, s.repo, requestID, false)
}

func (s *service) List(ctx context.Context, params ListParams) (*RequestList, error) {
	query := listQuery{
		Status:      params.Status,
		ProjectID:   params.ProjectID,
		RequestedBy: params.RequestedBy,
		Limit:       params.Limit,
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *params.Status)
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list material requests")
	}
	out := &RequestList{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// Update edits a pending request. Only the requester or an admin may edit.
func (s *service) Update(ctx context.Context, requestID uuid.UUID, actor Actor, input UpdateInput) (*models.MaterialRequest, error) {
	var out *models.MaterialRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := loadRequest(ctx, repo, requestID, true)
		if err != nil {
			return err
		}
		if err := checkOwner(req, actor); err != nil {
			return err
		}

		var lines []LineItem
		if input.Items != nil {
			if lines, err = NormalizeLines(input.Items); err != nil {
				return err
			}
			if _, err := catalog.LoadActiveMaterials(ctx, s.catalog.WithTx(tx), materialIDs(lines)); err != nil {
				return err
			}
		}
		if req.Status != enums.MaterialRequestPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot update a %s request", req.Status)
		}

		if input.Items != nil {
			items := toItems(lines)
			if err := repo.ReplaceItems(ctx, req.ID, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace request items")
			}
		}
		if input.Notes != nil {
			if err := repo.UpdateNotes(ctx, req.ID, strings.TrimSpace(*input.Notes)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request notes")
			}
		}
		out, err = loadRequest(ctx, repo, req.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, requestID uuid.UUID, actor Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := loadRequest(ctx, repo, requestID, true)
		if err != nil {
			return err
		}
		if err := checkOwner(req, actor); err != nil {
			return err
		}
		if req.Status != enums.MaterialRequestPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot delete a %s request", req.Status)
		}
		ok, err := repo.DeletePending(ctx, req.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete material request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request is no longer pending")
		}
		return nil
	})
}

func checkOwner(req *models.MaterialRequest, actor Actor) error {
	if actor.Role == enums.UserRoleAdmin || actor.UserID == req.RequestedBy {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the requester can change this request")
}

func toItems(lines []LineItem) []models.MaterialRequestItem {
	items := make([]models.MaterialRequestItem, len(lines))
	for i, line := range lines {
		items[i] = models.MaterialRequestItem{Position: i, MaterialID: line.MaterialID, Quantity: line.Quantity}
	}
	return items
}

func toRequestLines(lines []LineItem) []payloads.RequestLine {
	out := make([]payloads.RequestLine, len(lines))
	for i, line := range lines {
		out[i] = payloads.RequestLine{MaterialID: line.MaterialID, Quantity: line.Quantity}
	}
	return out
}
