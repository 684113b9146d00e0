package state

import (
	"context"
	"errors"
	"time"

	"rag-agent-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	guardKeyPrefix = "agent:generating:"
	stopKeyPrefix  = "agent:stop:"
)

// ErrAlreadyGenerating signals that the session already has an in-flight
// generation; the caller must reject the request, not queue it.
var ErrAlreadyGenerating = errors.New("a generation is already in progress for this session")

// FlagStore keeps the generation guard and stop flag in Redis so they are
// visible across server instances. Both entries carry TTLs: a crashed
// worker can never wedge a session in "generating" past the guard TTL.
type FlagStore struct {
	client   *redis.Client
	guardTTL time.Duration
	stopTTL  time.Duration
	logger   logger.ILogger
}

func NewFlagStore(client *redis.Client, guardTTL, stopTTL time.Duration, log logger.ILogger) *FlagStore {
	return &FlagStore{
		client:   client,
		guardTTL: guardTTL,
		stopTTL:  stopTTL,
		logger:   log,
	}
}

// AcquireGuard atomically claims the session for one generation. SET NX
// guarantees that of two concurrent submissions exactly one wins.
func (f *FlagStore) AcquireGuard(ctx context.Context, session string) error {
	ok, err := f.client.SetNX(ctx, guardKeyPrefix+session, "1", f.guardTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyGenerating
	}
	return nil
}

// ReleaseGuard removes the guard. Called on every exit path; failures are
// logged and absorbed since the TTL bounds the damage.
func (f *FlagStore) ReleaseGuard(ctx context.Context, session string) {
	if err := f.client.Del(ctx, guardKeyPrefix+session).Err(); err != nil {
		f.logger.Warn("FlagStore", "Failed to release generation guard, TTL will expire it", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
	}
}

// SetStop requests cooperative cancellation of the in-flight generation.
func (f *FlagStore) SetStop(ctx context.Context, session string) error {
	return f.client.SetEx(ctx, stopKeyPrefix+session, "1", f.stopTTL).Err()
}

// StopRequested polls the stop flag. A Redis error reads as "not stopped":
// cancellation is best-effort and must not kill a healthy generation.
func (f *FlagStore) StopRequested(ctx context.Context, session string) bool {
	n, err := f.client.Exists(ctx, stopKeyPrefix+session).Result()
	if err != nil {
		f.logger.Warn("FlagStore", "Stop flag check failed", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
		return false
	}
	return n > 0
}

// ClearStop removes the stop flag, used both at turn start (stale flags
// from a previous turn) and at turn end.
func (f *FlagStore) ClearStop(ctx context.Context, session string) {
	if err := f.client.Del(ctx, stopKeyPrefix+session).Err(); err != nil {
		f.logger.Warn("FlagStore", "Failed to clear stop flag, TTL will expire it", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
	}
}

// Ping reports Redis connectivity for the health endpoint.
func (f *FlagStore) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}
