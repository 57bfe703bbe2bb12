package model

import "time"

// Reservation records a user's booking of a room for the half-open
// interval [StartTime, EndTime).  For any room no two reservations may
// overlap; see Overlaps.
type Reservation struct {
	ID          uint64    `json:"id"`                    // reservations.id
	Title       string    `json:"title"`                 // reservations.title
	Description *string   `json:"description,omitempty"` // reservations.description (nullable)
	StartTime   time.Time `json:"start_time"`            // reservations.start_time (UTC)
	EndTime     time.Time `json:"end_time"`              // reservations.end_time (UTC)
	UserID      uint64    `json:"user_id"`               // reservations.user_id
	RoomID      uint64    `json:"room_id"`               // reservations.room_id
	CreatedAt   time.Time `json:"created_at"`            // reservations.created_at
	UpdatedAt   time.Time `json:"updated_at"`            // reservations.updated_at
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share at least
// one instant.  Touching intervals (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Overlaps reports whether r overlaps the interval [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return Overlaps(r.StartTime, r.EndTime, start, end)
}

// Live reports whether the reservation has not yet ended at now.
func (r Reservation) Live(now time.Time) bool {
	return r.EndTime.After(now)
}
