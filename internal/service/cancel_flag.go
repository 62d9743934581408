package service

import (
	"context"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/go-redis/redis/v8"
)

// cancelFlagTTL keeps a cancellation flag around long enough for any
// long-running batch to observe it.
const cancelFlagTTL = 24 * time.Hour

// CancelFlag marks batch runs for cancellation by run identifier.
type CancelFlag interface {
	Set(ctx context.Context, runID string) error
	IsSet(ctx context.Context, runID string) bool
}

type redisCancelFlag struct {
	client *redis.Client
}

// NewRedisCancelFlag creates the Redis-backed cancellation flag.
func NewRedisCancelFlag(client *redis.Client) CancelFlag {
	return &redisCancelFlag{client: client}
}

// Set flags a run for cancellation.
func (f *redisCancelFlag) Set(ctx context.Context, runID string) error {
	return f.client.Set(ctx, cancelKey(runID), "1", cancelFlagTTL).Err()
}

// IsSet reports whether a run has been flagged. Read errors are treated as
// "not cancelled" so a Redis hiccup cannot abort a healthy run.
func (f *redisCancelFlag) IsSet(ctx context.Context, runID string) bool {
	n, err := f.client.Exists(ctx, cancelKey(runID)).Result()
	if err != nil {
		log.Warnf("[BatchService] failed to read cancellation flag for run %s: %v", runID, err)
		return false
	}
	return n > 0
}

func cancelKey(runID string) string {
	return "batch:cancel:" + runID
}
