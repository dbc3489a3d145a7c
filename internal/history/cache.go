package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keeps recent conversations in Redis lists so reads skip Postgres.
// Entries hold the same ciphertext as the database.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func chatKey(userID uuid.UUID) string {
	return fmt.Sprintf("chat:history:%s", userID.String())
}

// Get returns the cached conversation and whether it was present.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) ([]Message, bool, error) {
	key := chatKey(userID)
	vals, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lrange %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, false, nil
	}

	msgs := make([]Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue // skip malformed entries
		}
		msgs = append(msgs, m)
	}
	return msgs, true, nil
}

// Set replaces the cached conversation.
func (c *Cache) Set(ctx context.Context, userID uuid.UUID, messages []Message) error {
	key := chatKey(userID)

	vals := make([]any, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshaling message: %w", err)
		}
		vals = append(vals, string(data))
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(vals) > 0 {
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, chatKey(userID)).Err()
}
