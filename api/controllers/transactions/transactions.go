package transactions

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/api/middleware"
	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	internaltransactions "github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

type returnBody struct {
	ProjectID  uuid.UUID       `json:"project_id" validate:"required"`
	MaterialID uuid.UUID       `json:"material_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	RequestID  *uuid.UUID      `json:"request_id"`
}

// List pages the transaction log filtered by project, material, request and
// movement type.
func List(svc internaltransactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction log unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := internaltransactions.Filter{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if filter.ProjectID, err = validators.ParseQueryUUID(r, "projectId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.MaterialID, err = validators.ParseQueryUUID(r, "materialId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.RequestID, err = validators.ParseQueryUUID(r, "requestId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			typ, err := enums.ParseMaterialTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			filter.Type = &typ
		}

		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CreateReturn moves unused material from a project back into its
// warehouse and logs a return transaction.
func CreateReturn(svc issuance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "issuance service unavailable"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body returnBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Return(r.Context(), issuance.ReturnInput{
			ProjectID:  body.ProjectID,
			MaterialID: body.MaterialID,
			Quantity:   body.Quantity,
			ActorID:    userID,
			RequestID:  body.RequestID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}
