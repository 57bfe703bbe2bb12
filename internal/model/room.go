package model

import (
	"strings"
	"time"
)

// RoomStatus is the occupancy state of a meeting room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

// ParseRoomStatus normalizes s (case-insensitive) into a RoomStatus.  The
// second return value is false when s does not name a known status.
func ParseRoomStatus(s string) (RoomStatus, bool) {
	switch st := RoomStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case RoomAvailable, RoomOccupied, RoomMaintenance:
		return st, true
	}
	return "", false
}

// Room represents a bookable meeting room as stored in the `rooms` table.
// Rooms are never physically removed; IsActive=false hides a room from
// every catalog read and booking operation.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – unique display name.
//  Capacity    – number of seats, always positive.
//  Location    – free-form location text.
//  Description – optional description.
//  Status      – AVAILABLE, OCCUPIED or MAINTENANCE.
//  IsActive    – soft-delete marker.
type Room struct {
	ID          uint64     `json:"id"`                    // rooms.id
	Name        string     `json:"name"`                  // rooms.name
	Capacity    int        `json:"capacity"`              // rooms.capacity
	Location    string     `json:"location"`              // rooms.location
	Description *string    `json:"description,omitempty"` // rooms.description (nullable)
	Status      RoomStatus `json:"status"`                // rooms.status
	IsActive    bool       `json:"is_active"`             // rooms.is_active
	CreatedAt   time.Time  `json:"created_at"`            // rooms.created_at
	UpdatedAt   time.Time  `json:"updated_at"`            // rooms.updated_at
}
