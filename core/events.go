package core

import (
	"context"
	"time"
)

// Event types
const (
	EventAttendance = "attendance"
	EventScan       = "scan"
)

// Event is broadcast to live feed subscribers whenever a card is scanned.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	UserName   string    `json:"user_name,omitempty"`
	RFIDUID    string    `json:"rfid_uid,omitempty"`
	DeviceID   string    `json:"device_id"`
	Department string    `json:"department,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventBus fans events out to every current subscriber.
// Delivery is best effort: slow subscribers may miss events.
type EventBus interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe returns a channel of events, closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan Event, error)
}
