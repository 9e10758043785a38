package jobs

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisQueue stores delayed jobs in a sorted set scored by fire time.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue constructs a delayed queue under the given key prefix.
func NewRedisQueue(client *redis.Client, keyPrefix string) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = "reminders"
	}
	return &RedisQueue{client: client, key: keyPrefix + ":due"}
}

// Enqueue adds the job or, for an existing key, replaces its fire time.
func (q *RedisQueue) Enqueue(ctx context.Context, key Key, fireAt time.Time) error {
	member := redis.Z{Score: float64(fireAt.UnixMilli()), Member: key.String()}
	if err := q.client.ZAdd(ctx, q.key, member).Err(); err != nil {
		return fmt.Errorf("delayed queue: enqueue %s: %w", key, err)
	}
	return nil
}

// Remove deletes the job if present.
func (q *RedisQueue) Remove(ctx context.Context, key Key) error {
	if err := q.client.ZRem(ctx, q.key, key.String()).Err(); err != nil {
		return fmt.Errorf("delayed queue: remove %s: %w", key, err)
	}
	return nil
}

var popScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #due > 0 then
  redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

// PopDue atomically claims up to limit jobs whose fire time has passed.
func (q *RedisQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]Key, error) {
	if limit <= 0 {
		limit = 100
	}

	res, err := popScript.Run(ctx, q.client, []string{q.key}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("delayed queue: pop due: %w", err)
	}

	keys := make([]Key, 0, len(res))
	for _, raw := range res {
		key, err := ParseKey(raw)
		if err != nil {
			// A malformed member can only come from manual edits; drop it
			// rather than wedging the queue.
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
