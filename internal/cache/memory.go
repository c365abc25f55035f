package cache

import (
	"context"
	"sync"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// Memory 进程内缓存，maxEntries 为 0 时不限制条目数
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*domain.Schedule
	order      []string // 写入顺序，超出容量时淘汰最早写入的条目
	maxEntries int
}

func NewMemory(maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]*domain.Schedule),
		maxEntries: maxEntries,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (*domain.Schedule, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *Memory) Put(ctx context.Context, key string, schedule *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = schedule.Clone()

	for m.maxEntries > 0 && len(m.order) > m.maxEntries {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
