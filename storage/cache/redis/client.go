// Package rediscache implements the scan mailbox and the event bus on Redis,
// so that several API processes share the same pending scan and live feed.
package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vericlock/vericlock/core"
)

const keyPrefix = "vericlock:"

var NowFunc = time.Now // mockable

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}
