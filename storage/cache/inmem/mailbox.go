// Package inmemcache provides process-local implementations of the scan mailbox and the event bus,
// used when no Redis address is configured and in tests.
package inmemcache

import (
	"context"
	"sync"
	"time"

	"github.com/vericlock/vericlock/core/rfid"
)

var NowFunc = time.Now // mockable

type Mailbox struct {
	mu   sync.Mutex
	scan *rfid.Scan
	ttl  time.Duration
}

var _ rfid.Mailbox = (*Mailbox)(nil) // interface compliance check

func NewMailbox(ttl time.Duration) *Mailbox {
	return &Mailbox{ttl: ttl}
}

func (mb *Mailbox) Put(_ context.Context, scan rfid.Scan) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.scan = &scan
	return nil
}

func (mb *Mailbox) Get(_ context.Context) (string, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.scan == nil || NowFunc().Sub(mb.scan.Timestamp) >= mb.ttl {
		return "", nil
	}
	return mb.scan.UID, nil
}

func (mb *Mailbox) Clear(_ context.Context, uid string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.scan != nil && mb.scan.UID == uid {
		mb.scan = nil
	}
	return nil
}
