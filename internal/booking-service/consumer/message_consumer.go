package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/booking-service/domain"
	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
	"carpool/pkg/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventConsumer bridges RabbitMQ to the realtime websocket hub:
// dispatched events come back off the queues and are pushed to the
// topic their subscribers listen on ("booking:<id>" for lifecycle and
// chat events, "driver:<id>" for location updates).
type EventConsumer struct {
	rabbit *rabbitmq.Connection
	log    logger.Logger
	ws     *websocket.Manager
}

func New(rabbit *rabbitmq.Connection, log logger.Logger, ws *websocket.Manager) *EventConsumer {
	return &EventConsumer{
		rabbit: rabbit,
		log:    log,
		ws:     ws,
	}
}

// StartConsuming starts all queue consumers
func (c *EventConsumer) StartConsuming(ctx context.Context) error {
	queues := []string{
		rabbitmq.QueueBookingEvents,
		rabbitmq.QueueRideEvents,
		rabbitmq.QueueChatMessages,
		rabbitmq.QueueLocationUpdates,
	}
	for _, queue := range queues {
		if err := c.rabbit.Consume(queue, c.handleDelivery); err != nil {
			return fmt.Errorf("start consumer on %s: %w", queue, err)
		}
	}

	c.log.Info("consumers_started", "All event consumers started")
	return nil
}

// handleDelivery decodes one event and pushes it to its topics
func (c *EventConsumer) handleDelivery(msg amqp.Delivery) {
	var event domain.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.Error("event_decode_failed", fmt.Errorf("unmarshal event: %w", err))
		// Malformed payloads will never decode; drop without requeue.
		msg.Nack(false, false)
		return
	}

	for _, topic := range topicsFor(event) {
		c.ws.Publish(topic, event)
	}

	if err := msg.Ack(false); err != nil {
		c.log.Error("event_ack_failed", err)
	}
}

// topicsFor maps an event to the websocket topics it belongs on
func topicsFor(event domain.Event) []string {
	var topics []string
	switch event.Type {
	case domain.EventDriverLocation:
		topics = append(topics, "driver:"+event.ActorID)
	case domain.EventRideCancelled, domain.EventRideCompleted:
		topics = append(topics, "ride:"+event.RideID)
	default:
		if event.BookingID != "" {
			topics = append(topics, "booking:"+event.BookingID)
		}
	}
	return topics
}
