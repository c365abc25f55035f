// Package cache 保存求解结果，键为输入指纹。
package cache

import (
	"context"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// Cache 按输入指纹读写求解结果。实现需要保证并发安全，
// 并且保存和返回的都是副本，调用方修改返回值不会影响缓存。
type Cache interface {
	Get(ctx context.Context, key string) (*domain.Schedule, bool, error)
	Put(ctx context.Context, key string, schedule *domain.Schedule) error
}

// Nop 不缓存任何结果
type Nop struct{}

func (Nop) Get(ctx context.Context, key string) (*domain.Schedule, bool, error) {
	return nil, false, nil
}

func (Nop) Put(ctx context.Context, key string, schedule *domain.Schedule) error {
	return nil
}
