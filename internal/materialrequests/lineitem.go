package materialrequests

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

// LineItem is a validated (material, quantity) pair.
type LineItem struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

func NewLineItem(materialID uuid.UUID, qty decimal.Decimal) (LineItem, error) {
	if materialID == uuid.Nil {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "material id is required")
	}
	if !qty.IsPositive() {
		return LineItem{}, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for material %s must be positive", materialID).
			WithDetails(map[string]any{"material_id": materialID, "quantity": qty.String()})
	}
	if !models.FitsQuantityScale(qty) {
		return LineItem{}, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for material %s allows at most %d decimal places", materialID, models.QuantityScale).
			WithDetails(map[string]any{"material_id": materialID, "quantity": qty.String()})
	}
	return LineItem{MaterialID: materialID, Quantity: qty}, nil
}

// NormalizeLines validates every line and folds repeated materials into the
// first occurrence, keeping first-seen order.
func NormalizeLines(lines []LineItem) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	out := make([]LineItem, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		valid, err := NewLineItem(line.MaterialID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if i, ok := index[valid.MaterialID]; ok {
			out[i].Quantity = out[i].Quantity.Add(valid.Quantity)
			continue
		}
		index[valid.MaterialID] = len(out)
		out = append(out, valid)
	}
	return out, nil
}

func materialIDs(lines []LineItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.MaterialID
	}
	return ids
}
