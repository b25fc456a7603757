package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateMaterialRequest OutboxAggregateType = "material_request"
	AggregateInventoryRecord OutboxAggregateType = "inventory_record"
	AggregateProject         OutboxAggregateType = "project"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMaterialRequest,
	AggregateInventoryRecord,
	AggregateProject,
}

// IsValid reports whether the value matches a known aggregate.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event written through the outbox.
type OutboxEventType string

const (
	EventMaterialRequestCreated  OutboxEventType = "material_request_created"
	EventMaterialRequestApproved OutboxEventType = "material_request_approved"
	EventMaterialRequestRejected OutboxEventType = "material_request_rejected"
	EventMaterialRequestIssued   OutboxEventType = "material_request_issued"
	EventMaterialReturned        OutboxEventType = "material_returned"
	EventInventoryLowStock       OutboxEventType = "inventory_low_stock"
)

var validEventTypes = []OutboxEventType{
	EventMaterialRequestCreated,
	EventMaterialRequestApproved,
	EventMaterialRequestRejected,
	EventMaterialRequestIssued,
	EventMaterialReturned,
	EventInventoryLowStock,
}

// IsValid reports whether the event type is registered.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
