package consumers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront-api/config"
	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

var errMalformedEvent = errors.New("malformed order event")

// StartOrderConsumer e-mails customers for each order event. Messages that
// cannot be handled are rejected without requeue and end up in the dead
// letter queue.
func StartOrderConsumer(ch *amqp.Channel, cfg *config.Config, es *utils.EmailService) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"storefront-api", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register order consumer: %w", err)
	}

	deliver := func(e models.OrderEvent) error { return services.DeliverOrderEvent(es, e) }
	go func() {
		for msg := range msgs {
			processOrderMessage(msg, deliver)
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"storefront-api-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		slog.Warn("register dead letter consumer", slog.Any("err", err))
		return nil
	}

	go func() {
		for msg := range dlqMsgs {
			slog.Error("order event dead-lettered",
				slog.String("message_id", msg.MessageId),
				slog.String("body", string(msg.Body)),
			)
			_ = msg.Ack(false)
		}
	}()
	return nil
}

func processOrderMessage(msg amqp.Delivery, deliver func(models.OrderEvent) error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling order event", slog.Any("panic", r))
			_ = msg.Nack(false, false)
		}
	}()

	if err := handleOrderEvent(msg.Body, deliver); err != nil {
		slog.Error("handle order event", slog.String("message_id", msg.MessageId), slog.Any("err", err))
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func handleOrderEvent(body []byte, deliver func(models.OrderEvent) error) error {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.OrderID == "" || event.Type == "" {
		return errMalformedEvent
	}
	slog.Info("processing order event", slog.String("orderId", event.OrderID), slog.String("type", event.Type))
	return deliver(event)
}
