package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache mirrors the most recent turns of each conversation in a Redis
// list so the hot read path avoids Postgres. It is strictly an
// optimization: the relational store stays the source of truth and
// every cache failure degrades to a database read.
type Cache struct {
	client  *redis.Client
	maxMsgs int
	ttl     time.Duration
}

// NewCache creates a recent-turns cache keeping maxMsgs entries per
// conversation with the given TTL.
func NewCache(client *redis.Client, maxMsgs int, ttl time.Duration) *Cache {
	return &Cache{client: client, maxMsgs: maxMsgs, ttl: ttl}
}

func convKey(conversationID string) string {
	return "conv:" + conversationID
}

// Append pushes a turn onto the conversation list and trims it to maxMsgs.
func (c *Cache) Append(ctx context.Context, turn Turn) error {
	key := convKey(turn.ConversationID)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-c.maxMsgs), -1)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Recent returns limit cached turns, oldest first. ok is false unless
// the list holds the full window: a shorter list cannot be told apart
// from one rebuilt after TTL expiry, where only the tail of the
// conversation survived, so callers must fall back to the database.
func (c *Cache) Recent(ctx context.Context, conversationID string, limit int) (turns []Turn, ok bool, err error) {
	key := convKey(conversationID)

	vals, err := c.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lrange %s: %w", key, err)
	}

	turns = make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, t)
	}
	if len(turns) < limit {
		return nil, false, nil
	}
	return turns, true, nil
}

// Clear drops the cached history for a conversation.
func (c *Cache) Clear(ctx context.Context, conversationID string) error {
	return c.client.Del(ctx, convKey(conversationID)).Err()
}
