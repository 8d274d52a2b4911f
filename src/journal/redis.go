// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Key layout
const (
	redisKeyPrefix = "paste:"
	redisIndexKey  = "pastes"
)

// Redis stores each entry as JSON under paste:<id> and adds the ID to the
// "pastes" sorted set, scored by creation time.
type Redis struct {
	rdb *redis.Client
}

func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("journal: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("journal: connect to redis: %w", err)
	}

	return &Redis{rdb: rdb}, nil
}

func (j *Redis) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal %s: %w", e.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// SetNX: an entry is written once and never replaced.
		pipe.SetNX(ctx, redisKeyPrefix+e.ID, data, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(e.CreatedAt.Unix()),
			Member: e.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal: redis record %s: %w", e.ID, err)
	}
	return nil
}

func (j *Redis) Close() error {
	return j.rdb.Close()
}
