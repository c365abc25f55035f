package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

const redisKeyPrefix = "schedule_cache_"

// Redis 以 JSON 形式把求解结果保存在 redis 中，多个 api / worker 进程共享
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (*domain.Schedule, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("无法从 redis 读取缓存: %w", err)
	}

	schedule := &domain.Schedule{}
	if err := json.Unmarshal(data, schedule); err != nil {
		return nil, false, fmt.Errorf("无法解析缓存的排班结果: %w", err)
	}
	return schedule, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, schedule *domain.Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("无法序列化排班结果: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("无法写入 redis 缓存: %w", err)
	}
	return nil
}
