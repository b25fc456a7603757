package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/payloads"
)

const notificationConsumer = "material-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// ConsumerParams wires a notification consumer.
type ConsumerParams struct {
	Repository   repository
	Subscription receiver
	Decoders     payloadDecoder
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
	// StockManagerID receives low-stock and return notifications. Nil disables them.
	StockManagerID uuid.UUID
}

// Consumer turns material workflow events into in-app notifications.
type Consumer struct {
	repo           repository
	subscription   receiver
	decoders       payloadDecoder
	idempotency    *idempotency.Manager
	logg           *logger.Logger
	stockManagerID uuid.UUID
}

// NewConsumer builds a notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if params.Decoders == nil {
		return nil, fmt.Errorf("decoder registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:           params.Repository,
		subscription:   params.Subscription,
		decoders:       params.Decoders,
		idempotency:    params.Idempotency,
		logg:           params.Logger,
		stockManagerID: params.StockManagerID,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes["event_type"], msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID, rawType string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "undecodable envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	fresh, err := c.idempotency.Claim(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Forget(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}

	notification := c.build(payload)
	if notification == nil {
		c.logg.Info(logCtx, "event has no recipient")
		return processResult{ack: true}
	}
	notification.EventID = &eventID

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Forget(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	logCtx = c.logg.WithField(logCtx, "user_id", notification.UserID.String())
	c.logg.Info(logCtx, "notification created")
	return processResult{ack: true}
}

// build maps a decoded payload to the notification its recipient should see.
func (c *Consumer) build(payload any) *models.Notification {
	switch p := payload.(type) {
	case *payloads.MaterialRequestCreatedEvent:
		return requestNotification(p.RequestedBy, p.RequestID, enums.NotificationTypeInfo,
			"Material request submitted",
			fmt.Sprintf("Your request for %d material(s) is awaiting approval.", len(p.Items)))
	case *payloads.MaterialRequestApprovedEvent:
		return requestNotification(p.RequestedBy, p.RequestID, enums.NotificationTypeSuccess,
			"Material request approved",
			"Your material request was approved and is ready to be issued.")
	case *payloads.MaterialRequestRejectedEvent:
		message := "Your material request was rejected."
		if p.Reason != "" {
			message = fmt.Sprintf("Your material request was rejected. Reason: %s", p.Reason)
		}
		return requestNotification(p.RequestedBy, p.RequestID, enums.NotificationTypeError,
			"Material request rejected", message)
	case *payloads.MaterialRequestIssuedEvent:
		return requestNotification(p.RequestedBy, p.RequestID, enums.NotificationTypeSuccess,
			"Materials issued",
			fmt.Sprintf("%d line(s) were issued from stock for a total cost of %s.", len(p.Lines), p.TotalCost.StringFixed(2)))
	case *payloads.MaterialReturnedEvent:
		if c.stockManagerID == uuid.Nil {
			return nil
		}
		return &models.Notification{
			UserID:  c.stockManagerID,
			Type:    enums.NotificationTypeInfo,
			Title:   "Material returned",
			Message: fmt.Sprintf("%s units of material %s were returned to stock.", p.Quantity.String(), p.MaterialID),
			Link:    stringPtr(fmt.Sprintf("/warehouses/%s/inventory", p.WarehouseID)),
		}
	case *payloads.InventoryLowStockEvent:
		if c.stockManagerID == uuid.Nil {
			return nil
		}
		return &models.Notification{
			UserID: c.stockManagerID,
			Type:   enums.NotificationTypeWarning,
			Title:  "Low stock",
			Message: fmt.Sprintf("%s is down to %s (alert at %s).",
				p.MaterialName, p.Quantity.String(), p.AlertQuantity.String()),
			Link: stringPtr(fmt.Sprintf("/warehouses/%s/inventory", p.WarehouseID)),
		}
	default:
		return nil
	}
}

func requestNotification(userID, requestID uuid.UUID, kind enums.NotificationType, title, message string) *models.Notification {
	if userID == uuid.Nil {
		return nil
	}
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/material-requests/%s", requestID)),
	}
}

func stringPtr(value string) *string {
	return &value
}
