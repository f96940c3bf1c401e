package docbase

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisSnapshotPrefix = "docbase:snapshot:"

// RedisSnapshotStore persists each collection as one JSON array under
// docbase:snapshot:{collection}. Whole-value writes keep Save atomic from
// a reader's perspective without any coordination beyond Redis itself.
type RedisSnapshotStore struct {
	client redis.UniversalClient
}

// NewRedisSnapshotStore wraps an existing Redis client.
func NewRedisSnapshotStore(client redis.UniversalClient) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func (s *RedisSnapshotStore) key(collection string) string {
	return redisSnapshotPrefix + collection
}

// Load fetches the collection's snapshot. A missing key means the
// collection has never been saved and loads empty.
func (s *RedisSnapshotStore) Load(ctx context.Context, collection string) ([]Entity, error) {
	raw, err := s.client.Get(ctx, s.key(collection)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"backend":    "redis",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	var entities []Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "redis",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return entities, nil
}

// Save replaces the collection's persisted snapshot.
func (s *RedisSnapshotStore) Save(ctx context.Context, collection string, entities []Entity) error {
	raw, err := json.Marshal(entities)
	if err != nil {
		return WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "redis",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := s.client.Set(ctx, s.key(collection), raw, 0).Err(); err != nil {
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "redis",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return nil
}
