package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultPresenceKey is the Redis set holding the ids of connected users.
const DefaultPresenceKey = "presence:online"

// RedisPresence mirrors the relay's online set into Redis so that other
// processes (the admin CLI) can read it. The relay stays the source of truth.
type RedisPresence struct {
	Redis *redis.Client
	Key   string
}

// NewRedisPresence Constructor
func NewRedisPresence(rdb *redis.Client) *RedisPresence {
	return &RedisPresence{Redis: rdb, Key: DefaultPresenceKey}
}

// SetOnline replaces the stored set with userIDs in one transaction.
func (p *RedisPresence) SetOnline(ctx context.Context, userIDs []string) error {
	_, err := p.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.Key)
		if len(userIDs) > 0 {
			members := make([]interface{}, len(userIDs))
			for i, id := range userIDs {
				members[i] = id
			}
			pipe.SAdd(ctx, p.Key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror online set: %w", err)
	}
	return nil
}

// OnlineUsers reads the mirrored set.
func (p *RedisPresence) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := p.Redis.SMembers(ctx, p.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("read online set: %w", err)
	}
	return ids, nil
}

// Clear removes the mirrored set, used on shutdown.
func (p *RedisPresence) Clear(ctx context.Context) error {
	return p.Redis.Del(ctx, p.Key).Err()
}
