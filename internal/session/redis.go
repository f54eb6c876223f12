package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sonnkraft/funnel-backend/internal/cache/redis"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

const keyPrefix = "funnel:conv:"

// RedisStore keeps snapshots in Redis with a sliding TTL. Every save renews
// the expiry, so active conversations survive as long as the visitor keeps
// interacting.
type RedisStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisStore wraps the shared Redis client as a snapshot store.
func NewRedisStore(cache *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: cache, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (*types.ConversationSnapshot, error) {
	raw, err := s.cache.Get(ctx, keyPrefix+id.String())
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap types.ConversationSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap types.ConversationSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, keyPrefix+snap.ConversationID.String(), string(raw), s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.cache.Delete(ctx, keyPrefix+id.String())
}
