package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-api/models"
	"storefront-api/utils"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status_updated"
)

// EventPublisher ships order events to a broker.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// UserLookup resolves the customer of an order.
type UserLookup interface {
	FindUser(ctx context.Context, userID primitive.ObjectID) (models.User, error)
}

// OrderNotifier publishes order events when a broker is configured and
// otherwise e-mails the customer directly.
type OrderNotifier struct {
	Users     UserLookup
	Publisher EventPublisher
	Email     *utils.EmailService
}

func (n *OrderNotifier) OrderPlaced(ctx context.Context, order models.Order) {
	n.dispatch(ctx, EventOrderCreated, order)
}

func (n *OrderNotifier) StatusChanged(ctx context.Context, order models.Order) {
	n.dispatch(ctx, EventOrderStatusUpdated, order)
}

func (n *OrderNotifier) dispatch(ctx context.Context, eventType string, order models.Order) {
	user, err := n.Users.FindUser(ctx, order.UserID)
	if err != nil {
		slog.Warn("notify: user lookup failed", slog.String("orderId", order.OrderID), slog.Any("err", err))
		return
	}

	event := models.OrderEvent{
		Type:          eventType,
		OrderID:       order.OrderID,
		UserID:        order.UserID.Hex(),
		Email:         user.Email,
		Name:          user.Name,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		Occurred:      time.Now(),
	}

	if n.Publisher != nil {
		err := n.Publisher.PublishOrderEvent(ctx, event)
		if err == nil {
			return
		}
		slog.Error("publish order event, falling back to direct email",
			slog.String("orderId", order.OrderID), slog.Any("err", err))
	}

	go func() {
		if err := DeliverOrderEvent(n.Email, event); err != nil {
			slog.Error("send order email", slog.String("to", event.Email), slog.Any("err", err))
		}
	}()
}

// DeliverOrderEvent turns an order event into the matching customer e-mail.
func DeliverOrderEvent(es *utils.EmailService, event models.OrderEvent) error {
	switch event.Type {
	case EventOrderCreated:
		return es.SendOrderConfirmationEmail(event)
	case EventOrderStatusUpdated:
		return es.SendOrderStatusEmail(event.Email, event.Name, event.OrderID, event.OrderStatus)
	default:
		slog.Warn("unknown order event type", slog.String("type", event.Type))
		return nil
	}
}
