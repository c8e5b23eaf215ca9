package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

const sessionLockTTL = 15 * time.Minute

// AcquireSessionLock guards session creation for a single order. Returns
// false when another request already holds the lock.
func (r *Redis) AcquireSessionLock(orderID, sessionID string) (bool, error) {
	key := "session_lock:" + orderID
	ok, err := r.Client.SetNX(context.Background(), key, sessionID, sessionLockTTL).Result()
	return ok, err
}

// ReleaseSessionLock removes the lock only when this session owns it.
func (r *Redis) ReleaseSessionLock(orderID, sessionID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("session_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == sessionID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil // do not release a lock held by another session
}

// CacheSearchResult stores a serialized search response under the query key.
func (r *Redis) CacheSearchResult(key, payload string, ttl time.Duration) error {
	return r.Client.Set(context.Background(), "search_cache:"+key, payload, ttl).Err()
}

// GetCachedSearchResult returns the cached payload, or "" on a miss.
func (r *Redis) GetCachedSearchResult(key string) (string, error) {
	val, err := r.Client.Get(context.Background(), "search_cache:"+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
