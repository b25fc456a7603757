package catalog

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	internalcatalog "github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

type supplierPriceBody struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

type createMaterialBody struct {
	Name          string              `json:"name" validate:"required,max=200"`
	Unit          string              `json:"unit" validate:"required,max=32"`
	AlertQuantity decimal.Decimal     `json:"alert_quantity" validate:"gte=0"`
	Suppliers     []supplierPriceBody `json:"suppliers" validate:"dive"`
}

type createProjectBody struct {
	Name                 string     `json:"name" validate:"required,max=200"`
	WarehouseMode        string     `json:"warehouse_mode" validate:"omitempty,oneof=shared dedicated"`
	DedicatedWarehouseID *uuid.UUID `json:"dedicated_warehouse_id"`
	ManagerID            *uuid.UUID `json:"manager_id"`
}

type createWarehouseBody struct {
	Name      string     `json:"name" validate:"required,max=200"`
	Type      string     `json:"type" validate:"required,oneof=main project"`
	Location  string     `json:"location" validate:"max=500"`
	ProjectID *uuid.UUID `json:"project_id"`
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
}

// CreateMaterial registers a material with its ordered supplier quotes. The
// first supplier's price is the unit cost used at issuance.
func CreateMaterial(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		var body createMaterialBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalcatalog.CreateMaterialInput{
			Name:          validators.SanitizeString(body.Name, 200),
			Unit:          validators.SanitizeString(body.Unit, 32),
			AlertQuantity: body.AlertQuantity,
		}
		for _, s := range body.Suppliers {
			input.Suppliers = append(input.Suppliers, internalcatalog.SupplierPriceInput{
				Name:  validators.SanitizeString(s.Name, 200),
				Price: s.Price,
			})
		}
		material, err := svc.CreateMaterial(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, material)
	}
}

func ListMaterials(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "activeOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMaterials(r.Context(), internalcatalog.ListMaterialsParams{
			Search:     validators.SanitizeString(r.URL.Query().Get("q"), 100),
			ActiveOnly: activeOnly,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetMaterial(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		materialID, err := validators.ParseURLUUID(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		material, err := svc.GetMaterial(r.Context(), materialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, material)
	}
}

func CreateProject(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		var body createProjectBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mode := enums.ProjectWarehouseShared
		if body.WarehouseMode != "" {
			mode = enums.ProjectWarehouseMode(body.WarehouseMode)
		}
		project, err := svc.CreateProject(r.Context(), internalcatalog.CreateProjectInput{
			Name:                 validators.SanitizeString(body.Name, 200),
			WarehouseMode:        mode,
			DedicatedWarehouseID: body.DedicatedWarehouseID,
			ManagerID:            body.ManagerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, project)
	}
}

func GetProject(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		project, err := svc.GetProject(r.Context(), projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, project)
	}
}

// CreateWarehouse adds a warehouse. Only one main warehouse may exist.
func CreateWarehouse(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		var body createWarehouseBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouse, err := svc.CreateWarehouse(r.Context(), internalcatalog.CreateWarehouseInput{
			Name:      validators.SanitizeString(body.Name, 200),
			Type:      enums.WarehouseType(body.Type),
			Location:  validators.SanitizeString(body.Location, 500),
			ProjectID: body.ProjectID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, warehouse)
	}
}
