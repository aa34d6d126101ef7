package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	contextKeyPrefix = "authz:ctx"
	roleSnapshotKey  = "authz:roles:active"
)

// ContextCache stores computed access contexts and the shared active-role
// snapshot in Redis. Every method is safe to call with a nil client or a
// dead Redis: reads degrade to misses and writes to no-ops, the engine
// stays correct without a cache.
type ContextCache struct {
	client      *redis.Client
	contextTTL  time.Duration
	snapshotTTL time.Duration
	logger      *slog.Logger
}

// NewContextCache constructs the cache helper.
func NewContextCache(client *redis.Client, contextTTL, snapshotTTL time.Duration, logger *slog.Logger) *ContextCache {
	return &ContextCache{
		client:      client,
		contextTTL:  contextTTL,
		snapshotTTL: snapshotTTL,
		logger:      logger,
	}
}

// ContextKey builds the per-user/per-target cache key. The union (nil
// target) form is distinct from every concrete scope so a scoped result can
// never leak into an unscoped query or the other way around.
func ContextKey(userID string, target *TargetScope) string {
	return fmt.Sprintf("%s:%s:%s", contextKeyPrefix, userID, scopeToken(target))
}

func scopeToken(target *TargetScope) string {
	if target == nil {
		return "union"
	}
	return fmt.Sprintf("bu=%s|out=%s", target.BusinessUnitID, target.OutletID)
}

// GetContext returns a cached access context when present.
func (c *ContextCache) GetContext(ctx context.Context, userID string, target *TargetScope) (AccessContext, bool) {
	if c == nil || c.client == nil {
		return AccessContext{}, false
	}
	payload, err := c.client.Get(ctx, ContextKey(userID, target)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log().Warn("context cache read failed, treating as miss", slog.Any("error", err))
		}
		return AccessContext{}, false
	}
	var access AccessContext
	if err := json.Unmarshal(payload, &access); err != nil {
		c.log().Warn("context cache payload corrupt, treating as miss", slog.Any("error", err))
		return AccessContext{}, false
	}
	return access, true
}

// SetContext writes the computed context, best effort.
func (c *ContextCache) SetContext(ctx context.Context, userID string, target *TargetScope, access AccessContext) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(access)
	if err != nil {
		c.log().Warn("context cache marshal failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, ContextKey(userID, target), payload, c.contextTTL).Err(); err != nil {
		c.log().Warn("context cache write failed", slog.Any("error", err))
	}
}

// InvalidateUser removes every cached context for the user across all scope
// variants. Returns the number of keys deleted.
func (c *ContextCache) InvalidateUser(ctx context.Context, userID string) int {
	if c == nil || c.client == nil || userID == "" {
		return 0
	}
	pattern := fmt.Sprintf("%s:%s:*", contextKeyPrefix, userID)
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.log().Warn("context cache scan failed during invalidation",
				slog.String("user_id", userID), slog.Any("error", err))
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.log().Warn("context cache delete failed during invalidation",
					slog.String("user_id", userID), slog.Any("error", err))
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

// GetRoleSnapshot returns the shared active-role snapshot when present.
func (c *ContextCache) GetRoleSnapshot(ctx context.Context) (map[string]Role, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, roleSnapshotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log().Warn("role snapshot read failed, treating as miss", slog.Any("error", err))
		}
		return nil, false
	}
	var snapshot map[string]Role
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		c.log().Warn("role snapshot payload corrupt, treating as miss", slog.Any("error", err))
		return nil, false
	}
	return snapshot, true
}

// SetRoleSnapshot refreshes the shared snapshot, best effort. Its short TTL
// bounds how long role edits stay invisible to resolution.
func (c *ContextCache) SetRoleSnapshot(ctx context.Context, snapshot map[string]Role) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		c.log().Warn("role snapshot marshal failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, roleSnapshotKey, payload, c.snapshotTTL).Err(); err != nil {
		c.log().Warn("role snapshot write failed", slog.Any("error", err))
	}
}

func (c *ContextCache) log() *slog.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
