package rfid

import (
	"context"
	"time"
)

// Scan is a card read by a device in enrollment mode, waiting to be claimed by the registration form.
type Scan struct {
	UID       string    `json:"uid"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"` // UTC
}

// Mailbox is a single-slot buffer holding the last unclaimed Scan.
// Each Put overwrites the slot; there is no queueing.
type Mailbox interface {
	Put(ctx context.Context, scan Scan) error
	// Get returns the UID of the stored scan if it is younger than the mailbox TTL, or "" otherwise.
	Get(ctx context.Context) (string, error)
	// Clear empties the slot only if it holds uid. A mismatch is not an error.
	Clear(ctx context.Context, uid string) error
}

// Reply is the plain text answer sent back to a reader.
type Reply struct {
	Status int
	Text   string
}

// Poll is the body of a mailbox polling request.
type Poll struct {
	Action string `json:"action"`
	UID    string `json:"uid"`
}

const (
	ActionGetUID   = "get_uid"
	ActionClearUID = "clear_uid"
)
