package inventory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	internalinventory "github.com/angelmondragon/sitestock-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

type setQuantityBody struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
}

type adjustBody struct {
	Delta decimal.Decimal `json:"delta"`
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable")
}

// List returns every stocked material in a warehouse.
func List(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		warehouseID, err := validators.ParseURLUUID(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// LowStock lists records at or below their material's alert quantity.
func LowStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		warehouseID, err := validators.ParseURLUUID(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListLowStock(r.Context(), &warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// Get reads one record; an unstocked pair reads as zero.
func Get(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		warehouseID, materialID, err := pairFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Get(r.Context(), warehouseID, materialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// SetQuantity overwrites the on-hand quantity (stock count correction).
func SetQuantity(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		warehouseID, materialID, err := pairFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setQuantityBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.SetQuantity(r.Context(), warehouseID, materialID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// Adjust applies a signed delta. A decrement that would go below zero fails
// with INSUFFICIENT_STOCK and leaves the record untouched.
func Adjust(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		warehouseID, materialID, err := pairFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adjustment, err := svc.Adjust(r.Context(), warehouseID, materialID, body.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustment)
	}
}

func pairFrom(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	warehouseID, err := validators.ParseURLUUID(r, "warehouseId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	materialID, err := validators.ParseURLUUID(r, "materialId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return warehouseID, materialID, nil
}
