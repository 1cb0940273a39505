// Package notifier dispatches lifecycle events to RabbitMQ. Dispatch
// is fire-and-forget: a failed publish is logged and swallowed so a
// booking or ride transition is never rolled back because a
// notification could not be delivered.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
)

const publishTimeout = 5 * time.Second

// RabbitDispatcher publishes domain events to the booking topology.
type RabbitDispatcher struct {
	rabbit *rabbitmq.Connection
	log    logger.Logger
}

func NewRabbitDispatcher(rabbit *rabbitmq.Connection, log logger.Logger) *RabbitDispatcher {
	return &RabbitDispatcher{
		rabbit: rabbit,
		log:    log,
	}
}

// Notify publishes the event to its exchange. Errors are logged, never
// returned.
func (d *RabbitDispatcher) Notify(ctx context.Context, event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		d.log.Error("event_marshal_failed", fmt.Errorf("marshal %s event: %w", event.Type, err))
		return
	}

	exchange, routingKey := route(event)

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.rabbit.Publish(ctx, exchange, routingKey, body); err != nil {
		d.log.WithFields(logger.LogFields{
			"event_type": string(event.Type),
			"ride_id":    event.RideID,
			"booking_id": event.BookingID,
		}).Error("event_publish_failed", err)
		return
	}

	d.log.WithFields(logger.LogFields{
		"event_type":  string(event.Type),
		"routing_key": routingKey,
	}).Debug("event_published", "Event dispatched")
}

// route maps an event to its exchange and routing key
func route(event domain.Event) (exchange, routingKey string) {
	switch event.Type {
	case domain.EventChatMessage:
		return rabbitmq.ExchangeChat, "chat.message." + event.BookingID
	case domain.EventDriverLocation:
		return rabbitmq.ExchangeLocation, ""
	default:
		return rabbitmq.ExchangeBooking, string(event.Type)
	}
}
