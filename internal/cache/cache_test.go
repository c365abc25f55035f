package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func sampleSchedule() *domain.Schedule {
	return &domain.Schedule{
		Status: domain.StatusOptimal,
		Assignments: []domain.Assignment{
			{EmployeeID: "EMP001", Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Shift: "day", Role: domain.RoleFrontLine, Hours: 8},
		},
		Metrics: domain.Metrics{
			TotalCost:          120,
			HoursByEmployee:    map[string]float64{"EMP001": 8},
			OvertimeByEmployee: map[string]float64{"EMP001": 0},
			Coverage:           []domain.CoverageEntry{},
		},
		Relaxed:     []domain.ConstraintFamily{},
		Fingerprint: "00000000deadbeef",
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	s := sampleSchedule()
	require.NoError(t, m.Put(ctx, "key", s))

	// 写入之后修改原对象不影响缓存
	s.Assignments[0].EmployeeID = "EMP999"
	s.Metrics.HoursByEmployee["EMP001"] = 100

	got, ok, err := m.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EMP001", got.Assignments[0].EmployeeID)
	assert.Equal(t, 8.0, got.Metrics.HoursByEmployee["EMP001"])

	// 修改读出的对象同样不影响缓存
	got.Assignments[0].Shift = "night"
	again, _, _ := m.Get(ctx, "key")
	assert.Equal(t, "day", again.Assignments[0].Shift)
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Put(ctx, "a", sampleSchedule()))
	require.NoError(t, m.Put(ctx, "b", sampleSchedule()))
	require.NoError(t, m.Put(ctx, "a", sampleSchedule()))
	require.NoError(t, m.Put(ctx, "c", sampleSchedule()))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}

	require.NoError(t, c.Put(ctx, "key", sampleSchedule()))
	_, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeRedis 只实现缓存用到的 Get 和 Set
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	c := NewRedis(client, time.Hour)

	_, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "key", sampleSchedule()))
	assert.Contains(t, client.data, "schedule_cache_key")
	assert.Equal(t, time.Hour, client.ttl["schedule_cache_key"])

	got, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleSchedule(), got)
}

func TestRedisErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	c := NewRedis(client, time.Hour)

	client.data["schedule_cache_broken"] = "{not json"
	_, _, err := c.Get(ctx, "broken")
	assert.Error(t, err)

	client.err = errors.New("connection refused")
	_, _, err = c.Get(ctx, "key")
	assert.ErrorIs(t, err, client.err)
	assert.ErrorIs(t, c.Put(ctx, "key", sampleSchedule()), client.err)
}
