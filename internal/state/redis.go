package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Compile-time interface compliance check.
var _ Store = (*RedisStore)(nil)

const redisKeyPrefix = "tdb:state:"

// RedisStore keeps each document as one Redis string value. It is the backend
// to use when the runtime state should outlive the host's filesystem.
type RedisStore struct {
	log    logrus.FieldLogger
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store on an already-connected client.
func NewRedisStore(log logrus.FieldLogger, client *redis.Client) *RedisStore {
	return &RedisStore{
		log:    log.WithField("component", "state_redis"),
		client: client,
	}
}

// Load decodes the named document from Redis.
func (s *RedisStore) Load(ctx context.Context, name string, v any) (bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("get %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}

	return true, nil
}

// Save encodes v and replaces the named document in Redis. Documents never
// expire; they are the engine's durable state.
func (s *RedisStore) Save(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+name, string(data), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}

	s.log.WithFields(logrus.Fields{
		"document": name,
		"bytes":    len(data),
	}).Debug("Saved state document")

	return nil
}
