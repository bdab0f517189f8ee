// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// tree.go provides a Valkey-backed cache for assembled category trees.
// Building the tree walks every category, so the JSON-encoded forest is
// kept in Valkey until the next structural change or recompute clears it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"catalogd/internal/models"
)

const (
	// treeKeyPrefix is the Valkey key prefix for cached trees.
	treeKeyPrefix = "catalog:tree:"

	// DefaultTreeTTL is how long an assembled tree stays cached.
	DefaultTreeTTL = 5 * time.Minute
)

// TreeCache manages category tree caching in Valkey.
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTreeCache creates a new tree cache backed by the given Valkey client.
func NewTreeCache(client *redis.Client, ttl time.Duration) *TreeCache {
	if ttl <= 0 {
		ttl = DefaultTreeTTL
	}
	return &TreeCache{client: client, ttl: ttl}
}

// TreeKey returns the cache key for the full or the active-only tree.
func TreeKey(activeOnly bool) string {
	if activeOnly {
		return treeKeyPrefix + "active"
	}
	return treeKeyPrefix + "all"
}

// GetTree returns the cached forest. A decode failure counts as a miss.
func (tc *TreeCache) GetTree(ctx context.Context, activeOnly bool) ([]models.Category, bool) {
	key := TreeKey(activeOnly)
	val, err := tc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("tree cache get error", "key", key, "error", err)
		return nil, false
	}

	var tree []models.Category
	if err := json.Unmarshal(val, &tree); err != nil {
		slog.Warn("tree cache decode error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("tree cache hit", "key", key)
	return tree, true
}

// SetTree stores the forest with the configured TTL.
func (tc *TreeCache) SetTree(ctx context.Context, activeOnly bool, tree []models.Category) {
	key := TreeKey(activeOnly)
	data, err := json.Marshal(tree)
	if err != nil {
		slog.Warn("tree cache encode error", "key", key, "error", err)
		return
	}
	if err := tc.client.Set(ctx, key, data, tc.ttl).Err(); err != nil {
		slog.Warn("tree cache set error", "key", key, "error", err)
	}
}

// Invalidate removes every cached tree by scanning for the prefix.
func (tc *TreeCache) Invalidate(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := tc.client.Scan(ctx, cursor, treeKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("tree cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := tc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("tree cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("tree cache cleared", "deleted", deleted)
	}
}
