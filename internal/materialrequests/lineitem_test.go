package materialrequests

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

func TestNormalizeLinesMergesDuplicates(t *testing.T) {
	cement, steel := uuid.New(), uuid.New()
	lines, err := NormalizeLines([]LineItem{
		{MaterialID: cement, Quantity: dbtest.Qty("10")},
		{MaterialID: steel, Quantity: dbtest.Qty("2")},
		{MaterialID: cement, Quantity: dbtest.Qty("5.5")},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].MaterialID != cement || !lines[0].Quantity.Equal(dbtest.Qty("15.5")) {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[1].MaterialID != steel {
		t.Fatalf("order should follow first occurrence, got %+v", lines)
	}
}

func TestNormalizeLinesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		lines []LineItem
	}{
		{name: "empty"},
		{name: "zero quantity", lines: []LineItem{{MaterialID: uuid.New(), Quantity: dbtest.Qty("0")}}},
		{name: "negative quantity", lines: []LineItem{{MaterialID: uuid.New(), Quantity: dbtest.Qty("-2")}}},
		{name: "missing material", lines: []LineItem{{Quantity: dbtest.Qty("1")}}},
		{name: "rounds to zero", lines: []LineItem{{MaterialID: uuid.New(), Quantity: dbtest.Qty("0.00001")}}},
		{name: "too many decimals", lines: []LineItem{{MaterialID: uuid.New(), Quantity: dbtest.Qty("1.00006")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeLines(tt.lines)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewLineItemAcceptsFourDecimals(t *testing.T) {
	line, err := NewLineItem(uuid.New(), dbtest.Qty("1.2345"))
	if err != nil {
		t.Fatalf("new line item: %v", err)
	}
	if !line.Quantity.Equal(dbtest.Qty("1.2345")) {
		t.Fatalf("quantity changed: %s", line.Quantity)
	}
}
