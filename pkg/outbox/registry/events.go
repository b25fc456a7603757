package registry

import (
	"encoding/json"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (any, error)

// lane picks the configured topic an event is published on.
type lane int

const (
	laneDomain lane = iota
	laneNotification
)

type eventSpec struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	lane      lane
	decode    decoderFunc
}

func spec[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, l lane) eventSpec {
	return eventSpec{eventType: eventType, aggregate: aggregate, lane: l, decode: jsonDecoder[T]}
}

// v1Events is the single list of version-1 events. Request lifecycle and
// returns go to the domain topic, stock alerts to the notification topic.
var v1Events = []eventSpec{
	spec[payloads.MaterialRequestCreatedEvent](enums.EventMaterialRequestCreated, enums.AggregateMaterialRequest, laneDomain),
	spec[payloads.MaterialRequestApprovedEvent](enums.EventMaterialRequestApproved, enums.AggregateMaterialRequest, laneDomain),
	spec[payloads.MaterialRequestRejectedEvent](enums.EventMaterialRequestRejected, enums.AggregateMaterialRequest, laneDomain),
	spec[payloads.MaterialRequestIssuedEvent](enums.EventMaterialRequestIssued, enums.AggregateMaterialRequest, laneDomain),
	spec[payloads.MaterialReturnedEvent](enums.EventMaterialReturned, enums.AggregateProject, laneDomain),
	spec[payloads.InventoryLowStockEvent](enums.EventInventoryLowStock, enums.AggregateInventoryRecord, laneNotification),
}

func jsonDecoder[T any](payload json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}
