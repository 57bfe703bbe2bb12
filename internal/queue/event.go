// Package queue carries reservation lifecycle events over RabbitMQ.  The
// publisher side is used by the booking engine after a transaction commits;
// the consumer side appends every event to an audit log file.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// ReservationQueue is the durable queue all reservation events go to.
const ReservationQueue = "reservation.events"

// EventType names a reservation lifecycle transition.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationUpdated   EventType = "reservation.updated"
	EventReservationCancelled EventType = "reservation.cancelled"
)

// ReservationEvent is the JSON body of every message on ReservationQueue.
// It holds enough of the reservation for consumers to log or notify
// without reading the primary database.
type ReservationEvent struct {
	EventID       string    `json:"event_id"`
	Type          EventType `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	RoomID        uint64    `json:"room_id"`
	Title         string    `json:"title"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewReservationEvent snapshots res into an event of type t with a fresh
// event ID.
func NewReservationEvent(t EventType, res *model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          t,
		ReservationID: res.ID,
		UserID:        res.UserID,
		RoomID:        res.RoomID,
		Title:         res.Title,
		StartTime:     res.StartTime.UTC(),
		EndTime:       res.EndTime.UTC(),
		OccurredAt:    at.UTC(),
	}
}
