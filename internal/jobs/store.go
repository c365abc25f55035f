// Package jobs 异步排班任务：状态保存在 redis，任务本身经由 rabbitmq 分发
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

var ErrJobNotFound = errors.New("任务不存在或已过期")

const keyPrefix = "scheduling_job_"

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, job *domain.SchedulingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+job.ID, data, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, id string) (*domain.SchedulingJob, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	job := &domain.SchedulingJob{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Update 读取任务、修改后写回
func (s *Store) Update(ctx context.Context, id string, fn func(job *domain.SchedulingJob)) (*domain.SchedulingJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(job)
	job.UpdatedAt = time.Now()
	if err := s.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
