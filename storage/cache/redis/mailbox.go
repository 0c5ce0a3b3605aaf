package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vericlock/vericlock/core/rfid"
)

const mailboxKey = keyPrefix + "rfid:last_scan"

// clearScript deletes the pending scan only if it holds the given UID.
var clearScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val and cjson.decode(val).uid == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Mailbox struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ rfid.Mailbox = (*Mailbox)(nil) // interface compliance check

func NewMailbox(rdb redis.Cmdable, ttl time.Duration) *Mailbox {
	return &Mailbox{rdb: rdb, ttl: ttl}
}

func (mb *Mailbox) Put(ctx context.Context, scan rfid.Scan) error {
	val, err := json.Marshal(scan)
	if err != nil {
		return errors.Wrap(err, "encoding scan")
	}
	return errors.Wrap(mb.rdb.Set(ctx, mailboxKey, val, mb.ttl).Err(), "storing scan")
}

func (mb *Mailbox) Get(ctx context.Context) (string, error) {
	val, err := mb.rdb.Get(ctx, mailboxKey).Bytes()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "getting scan")
	}

	var scan rfid.Scan
	if err = json.Unmarshal(val, &scan); err != nil {
		return "", errors.Wrap(err, "decoding scan")
	}
	// the key expiry is only second precise
	if NowFunc().Sub(scan.Timestamp) >= mb.ttl {
		return "", nil
	}
	return scan.UID, nil
}

func (mb *Mailbox) Clear(ctx context.Context, uid string) error {
	err := clearScript.Run(ctx, mb.rdb, []string{mailboxKey}, uid).Err()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "clearing scan")
	}
	return nil
}
