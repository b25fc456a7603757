package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestLine is a requested (material, quantity) pair.
type RequestLine struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// MaterialRequestCreatedEvent is emitted when a request is submitted.
type MaterialRequestCreatedEvent struct {
	RequestID   uuid.UUID     `json:"request_id"`
	ProjectID   uuid.UUID     `json:"project_id"`
	RequestedBy uuid.UUID     `json:"requested_by"`
	Items       []RequestLine `json:"items"`
}

// MaterialRequestApprovedEvent is emitted on pending → approved.
type MaterialRequestApprovedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	ApprovedBy  uuid.UUID `json:"approved_by"`
}

// MaterialRequestRejectedEvent is emitted on pending → rejected.
type MaterialRequestRejectedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	RejectedBy  uuid.UUID `json:"rejected_by"`
	Reason      string    `json:"reason"`
}

// IssuedLine is the cost snapshot of one fulfilled line.
type IssuedLine struct {
	MaterialID    uuid.UUID       `json:"material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// MaterialRequestIssuedEvent is emitted once inventory has been decremented
// for every line of the request.
type MaterialRequestIssuedEvent struct {
	RequestID   uuid.UUID       `json:"request_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	RequestedBy uuid.UUID       `json:"requested_by"`
	IssuedBy    uuid.UUID       `json:"issued_by"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Lines       []IssuedLine    `json:"lines"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// MaterialReturnedEvent is emitted when unused stock comes back from a site.
type MaterialReturnedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	MaterialID    uuid.UUID       `json:"material_id"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReturnedBy    uuid.UUID       `json:"returned_by"`
	RequestID     *uuid.UUID      `json:"request_id,omitempty"`
}

// InventoryLowStockEvent is emitted when on-hand quantity drops to or below
// the material alert quantity.
type InventoryLowStockEvent struct {
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	MaterialID    uuid.UUID       `json:"material_id"`
	MaterialName  string          `json:"material_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	AlertQuantity decimal.Decimal `json:"alert_quantity"`
}
