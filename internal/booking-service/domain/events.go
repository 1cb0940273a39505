package domain

import (
	"context"
	"time"
)

// EventType identifies a lifecycle or realtime event
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingApproved  EventType = "booking.approved"
	EventBookingRejected  EventType = "booking.rejected"
	EventBookingCancelled EventType = "booking.cancelled"
	EventRideCancelled    EventType = "ride.cancelled"
	EventRideCompleted    EventType = "ride.completed"
	EventChatMessage      EventType = "chat.message"
	EventDriverLocation   EventType = "driver.location"
)

// Event is the payload handed to the notification dispatcher on every
// state transition. RecipientID is the user the event concerns (the
// counterparty of the actor); Data carries event-specific fields.
type Event struct {
	Type        EventType              `json:"type"`
	RideID      string                 `json:"ride_id,omitempty"`
	BookingID   string                 `json:"booking_id,omitempty"`
	ActorID     string                 `json:"actor_id,omitempty"`
	RecipientID string                 `json:"recipient_id,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Notifier dispatches events to interested parties. Implementations
// are fire-and-forget: a failed dispatch is logged by the
// implementation and must never surface to the caller, so a state
// transition is never rolled back because a notification failed.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
