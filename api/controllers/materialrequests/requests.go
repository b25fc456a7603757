package materialrequests

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/api/middleware"
	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	internalrequests "github.com/angelmondragon/sitestock-backend/internal/materialrequests"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Line validation (positive quantity, known material) happens in the service
// so that project existence is always checked first.
type createRequestBody struct {
	ProjectID uuid.UUID                   `json:"project_id" validate:"required"`
	Items     []internalrequests.LineItem `json:"items"`
	Notes     string                      `json:"notes" validate:"max=2000"`
}

type updateRequestBody struct {
	Items []internalrequests.LineItem `json:"items"`
	Notes *string                     `json:"notes" validate:"omitempty,max=2000"`
}

type rejectRequestBody struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func unavailable(what string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable")
}

// Create submits a new pending request on behalf of the caller.
func Create(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Create(r.Context(), internalrequests.CreateInput{
			ProjectID:   body.ProjectID,
			RequestedBy: userID,
			Items:       body.Items,
			Notes:       validators.SanitizeString(body.Notes, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, req)
	}
}

// List pages requests, optionally filtered by status, project or requester.
func List(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalrequests.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseMaterialRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}
		if params.ProjectID, err = validators.ParseQueryUUID(r, "projectId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.RequestedBy, err = validators.ParseQueryUUID(r, "requestedBy"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Get(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// Update edits lines and/or notes of a pending request.
func Update(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Items == nil && body.Notes == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}

		req, err := svc.Update(r.Context(), requestID, actor, internalrequests.UpdateInput{
			Items: body.Items,
			Notes: body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

func Delete(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), requestID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": requestID})
	}
}

func Approve(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Approve(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// Reject accepts an optional JSON body carrying the reason.
func Reject(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("material request service"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// the reason is optional, so an empty body of any framing is fine
		var body rejectRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Reject(r.Context(), requestID, userID, validators.SanitizeString(body.Reason, 1000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// Issue fulfils an approved request from its project's warehouse.
func Issue(svc issuance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("issuance service"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Issue(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorFrom(r *http.Request) (internalrequests.Actor, error) {
	userID, role, err := middleware.RequireActor(r.Context())
	if err != nil {
		return internalrequests.Actor{}, err
	}
	return internalrequests.Actor{UserID: userID, Role: role}, nil
}
