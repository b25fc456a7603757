package projects

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

type planBody struct {
	PlannedQuantity decimal.Decimal `json:"planned_quantity" validate:"gte=0"`
}

type reconcileResponse struct {
	ProjectID string         `json:"project_id"`
	InSync    bool           `json:"in_sync"`
	Drift     []rollup.Drift `json:"drift"`
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "project materials unavailable")
}

// ListMaterials returns the planned/issued rollup of one project.
func ListMaterials(catalogSvc catalog.Service, svc rollup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalogSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := catalogSvc.GetProject(r.Context(), projectID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByProject(r.Context(), projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// Plan sets the planned quantity; issued totals are left untouched.
func Plan(catalogSvc catalog.Service, svc rollup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalogSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		materialID, err := validators.ParseURLUUID(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body planBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := catalogSvc.GetProject(r.Context(), projectID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := catalogSvc.GetMaterial(r.Context(), materialID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Plan(r.Context(), projectID, materialID, body.PlannedQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// Reconcile reports where the rollup disagrees with the transaction log.
func Reconcile(catalogSvc catalog.Service, svc rollup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalogSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := catalogSvc.GetProject(r.Context(), projectID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		drift, err := svc.Reconcile(r.Context(), projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if drift == nil {
			drift = []rollup.Drift{}
		}
		responses.WriteSuccess(w, reconcileResponse{
			ProjectID: projectID.String(),
			InSync:    len(drift) == 0,
			Drift:     drift,
		})
	}
}
