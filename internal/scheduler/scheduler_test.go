package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func mustDate(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// smallStore 两名前台和一名主管，一天一个 8 小时的班次
func smallStore() domain.ProblemInput {
	day := mustDate("2024-03-04")
	return domain.ProblemInput{
		Horizon: domain.Horizon{Start: day, End: day},
		Employees: []domain.Employee{
			{ID: "EMP001", Name: "Alice", Role: domain.RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP002", Name: "Bob", Role: domain.RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP003", Name: "Carol", Role: domain.RoleSupervisor, HourlyWage: 22, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
		},
		Shifts: []domain.Shift{{Name: "day", DurationHours: 8}},
		Demand: []domain.DemandRequirement{
			{Date: day, Shift: "day", Role: domain.RoleFrontLine, RequiredHeadcount: 2},
			{Date: day, Shift: "day", Role: domain.RoleSupervisor, RequiredHeadcount: 1},
		},
		DefaultAvailability: domain.AvailabilityAvailable,
	}
}

func supervisorAway() domain.ProblemInput {
	in := smallStore()
	in.Availability = []domain.AvailabilitySlot{
		{EmployeeID: "EMP003", Date: in.Horizon.Start, Shift: "day", Available: false},
	}
	return in
}

func newProblem(t *testing.T, in domain.ProblemInput) *domain.Problem {
	t.Helper()
	p, err := domain.NewProblem(in)
	require.NoError(t, err)
	return p
}

func coverageOf(t *testing.T, s *domain.Schedule, role domain.Role) domain.CoverageEntry {
	t.Helper()
	for _, c := range s.Metrics.Coverage {
		if c.Role == role {
			return c
		}
	}
	t.Fatalf("没有角色 %s 的覆盖记录", role)
	return domain.CoverageEntry{}
}

func TestScheduleSmallStore(t *testing.T) {
	p := newProblem(t, smallStore())

	s, err := New(nil, discard).Schedule(context.Background(), p, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, s.Status)
	assert.Len(t, s.Assignments, 3)
	assert.InDelta(t, 416.0, s.Metrics.TotalCost, 1e-6)
	assert.InDelta(t, 24.0, s.Metrics.TotalHours, 1e-9)
	assert.Zero(t, s.Metrics.OvertimeHoursTotal)
	assert.Zero(t, s.Metrics.UnmetDemand)
	assert.Equal(t, 1.0, s.Metrics.OverallCoverage)
	assert.Empty(t, s.Relaxed)
	assert.NotEmpty(t, s.Fingerprint)
	assert.False(t, s.SolveInfo.CacheHit)

	for _, c := range s.Metrics.Coverage {
		assert.Equal(t, 1.0, c.Ratio, "%s 的覆盖率", c.Role)
	}

	// 按日期、班次、员工排序
	assert.Equal(t, "EMP001", s.Assignments[0].EmployeeID)
	assert.Equal(t, domain.RoleSupervisor, s.Assignments[2].Role)
}

func TestScheduleRelaxesSupervisor(t *testing.T) {
	p := newProblem(t, supervisorAway())

	s, err := New(nil, discard).Schedule(context.Background(), p, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFeasible, s.Status)
	assert.Equal(t, []domain.ConstraintFamily{domain.FamilySupervisor}, s.Relaxed)
	assert.Equal(t, 0.0, coverageOf(t, s, domain.RoleSupervisor).Ratio)
	assert.Equal(t, 1.0, coverageOf(t, s, domain.RoleFrontLine).Ratio)
	assert.InDelta(t, 240.0, s.Metrics.TotalCost, 1e-6)
	assert.Equal(t, 1, s.Metrics.UnmetDemand)
}

func TestScheduleInfeasibleWithoutRelaxation(t *testing.T) {
	p := newProblem(t, supervisorAway())
	cfg := DefaultConfig()
	cfg.Relaxation = false

	s, err := New(nil, discard).Schedule(context.Background(), p, cfg)

	var infeasible *InfeasibleModelError
	require.True(t, errors.As(err, &infeasible))
	assert.Empty(t, infeasible.Attempted)
	require.NotNil(t, s)
	assert.Equal(t, domain.StatusInfeasible, s.Status)
	assert.Empty(t, s.Assignments)
	assert.Zero(t, s.SolveInfo.BestBound)

	// 无解的结果同样要能返回给前端
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded domain.Schedule
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, domain.StatusInfeasible, decoded.Status)
}

func TestScheduleRelaxesBothFamilies(t *testing.T) {
	p := newProblem(t, supervisorAway())
	cfg := DefaultConfig()
	cfg.Coverage = Hard()

	s, err := New(nil, discard).Schedule(context.Background(), p, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFeasible, s.Status)
	assert.Equal(t, []domain.ConstraintFamily{domain.FamilySupervisor, domain.FamilyCoverage}, s.Relaxed)
}

func TestScheduleRelaxesToEmptySchedule(t *testing.T) {
	in := supervisorAway()
	// 没有任何人可用
	in.DefaultAvailability = domain.AvailabilityUnavailable
	p := newProblem(t, in)

	cfg := DefaultConfig()
	cfg.Coverage = Hard()
	s, err := New(nil, discard).Schedule(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFeasible, s.Status)
	assert.Equal(t, []domain.ConstraintFamily{domain.FamilySupervisor, domain.FamilyCoverage}, s.Relaxed)
	assert.Empty(t, s.Assignments)
	assert.Equal(t, 3, s.Metrics.UnmetDemand)
}

func TestScheduleInvalidConfig(t *testing.T) {
	p := newProblem(t, smallStore())
	cfg := DefaultConfig()
	cfg.Coverage = ConstraintMode{Kind: "sometimes"}
	cfg.OvertimePenalty = -1

	_, err := New(nil, discard).Schedule(context.Background(), p, cfg)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)
}

func TestScheduleUsesCache(t *testing.T) {
	p := newProblem(t, smallStore())
	mem := cache.NewMemory(0)
	s := New(mem, discard)

	first, err := s.Schedule(context.Background(), p, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, first.SolveInfo.CacheHit)
	assert.Equal(t, 1, mem.Len())

	// 修改返回值不应该影响缓存
	first.Assignments[0].EmployeeID = "changed"

	second, err := s.Schedule(context.Background(), p, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, second.SolveInfo.CacheHit)
	assert.Equal(t, "EMP001", second.Assignments[0].EmployeeID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Metrics.TotalCost, second.Metrics.TotalCost)
}

func TestScheduleDoesNotCacheCancelled(t *testing.T) {
	p := newProblem(t, smallStore())
	mem := cache.NewMemory(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(mem, discard).Schedule(ctx, p, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, s.SolveInfo.Cancelled)
	assert.Zero(t, mem.Len())
}

func TestFingerprint(t *testing.T) {
	base := smallStore()
	cfg := DefaultConfig()

	fp := func(in domain.ProblemInput, cfg Config) string {
		key, err := Fingerprint(newProblem(t, in), cfg)
		require.NoError(t, err)
		return key
	}
	want := fp(base, cfg)
	assert.Len(t, want, 16)

	t.Run("输入顺序无关", func(t *testing.T) {
		in := smallStore()
		in.Employees[0], in.Employees[2] = in.Employees[2], in.Employees[0]
		in.Demand[0], in.Demand[1] = in.Demand[1], in.Demand[0]
		assert.Equal(t, want, fp(in, cfg))
	})

	t.Run("与展开后的可用性等价", func(t *testing.T) {
		in := smallStore()
		in.Availability = []domain.AvailabilitySlot{
			{EmployeeID: "EMP001", Date: in.Horizon.Start, Shift: "day", Available: true},
		}
		assert.Equal(t, want, fp(in, cfg))
	})

	cases := []struct {
		name   string
		modify func(in *domain.ProblemInput, cfg *Config)
	}{
		{"工资", func(in *domain.ProblemInput, cfg *Config) { in.Employees[1].HourlyWage = 16 }},
		{"需求", func(in *domain.ProblemInput, cfg *Config) { in.Demand[0].RequiredHeadcount = 1 }},
		{"可用性", func(in *domain.ProblemInput, cfg *Config) {
			in.Availability = []domain.AvailabilitySlot{{EmployeeID: "EMP002", Date: in.Horizon.Start, Shift: "day", Available: false}}
		}},
		{"偏好", func(in *domain.ProblemInput, cfg *Config) {
			w := 0.0
			in.Availability = []domain.AvailabilitySlot{{EmployeeID: "EMP002", Date: in.Horizon.Start, Shift: "day", Available: true, PreferenceWeight: &w}}
		}},
		{"班次时长", func(in *domain.ProblemInput, cfg *Config) {
			in.ShiftOverrides = []domain.ShiftOverride{{Date: in.Horizon.Start, Shift: "day", DurationHours: 6}}
		}},
		{"约束模式", func(in *domain.ProblemInput, cfg *Config) { cfg.Coverage = Hard() }},
		{"加班上限", func(in *domain.ProblemInput, cfg *Config) {
			zero := 0.0
			cfg.OvertimeCapHours = &zero
		}},
		{"随机种子", func(in *domain.ProblemInput, cfg *Config) { cfg.Seed = 2 }},
		{"遗传算法参数", func(in *domain.ProblemInput, cfg *Config) { cfg.Heuristic.PopulationSize = 40 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, c := smallStore(), DefaultConfig()
			tc.modify(&in, &c)
			assert.NotEqual(t, want, fp(in, c))
		})
	}
}

// randomStore 两周、三个班次的随机问题
func randomStore(rng *rand.Rand) domain.ProblemInput {
	start := mustDate("2024-03-04")
	in := domain.ProblemInput{
		Horizon: domain.Horizon{Start: start, End: start.AddDate(0, 0, 13)},
		Shifts: []domain.Shift{
			{Name: "morning", DurationHours: 6},
			{Name: "afternoon", DurationHours: 6},
			{Name: "night", DurationHours: 8},
		},
		DefaultAvailability: domain.AvailabilityUnavailable,
	}

	for i := 0; i < 7; i++ {
		role := domain.RoleFrontLine
		switch {
		case i < 2:
			role = domain.RoleSupervisor
		case i < 3:
			role = domain.RoleStock
		}
		class := domain.EmploymentFullTime
		if i%3 == 2 {
			class = domain.EmploymentPartTime
		}
		in.Employees = append(in.Employees, domain.Employee{
			ID:              fmt.Sprintf("EMP%03d", i+1),
			Name:            fmt.Sprintf("员工%d", i+1),
			Role:            role,
			HourlyWage:      float64(14 + rng.Intn(10)),
			WeeklyHoursCap:  20 + rng.Intn(25),
			EmploymentClass: class,
		})
	}

	for _, day := range in.Horizon.Days() {
		for _, shift := range in.Shifts {
			for _, emp := range in.Employees {
				if rng.Float64() < 0.6 {
					slot := domain.AvailabilitySlot{EmployeeID: emp.ID, Date: day, Shift: shift.Name, Available: true}
					if rng.Float64() < 0.3 {
						w := float64(rng.Intn(3))
						slot.PreferenceWeight = &w
					}
					in.Availability = append(in.Availability, slot)
				}
			}
			if rng.Float64() < 0.7 {
				in.Demand = append(in.Demand, domain.DemandRequirement{
					Date: day, Shift: shift.Name, Role: domain.RoleFrontLine, RequiredHeadcount: 1 + rng.Intn(2),
				})
			}
		}
	}
	return in
}

func TestScheduleInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultConfig()
	cfg.SupervisorPresence = Soft(100)
	cfg.TimeBudget = 2 * time.Second

	for i := 0; i < 3; i++ {
		in := randomStore(rng)
		p := newProblem(t, in)

		s, err := New(nil, discard).Schedule(context.Background(), p, cfg)
		require.NoError(t, err)
		require.True(t, s.Status.HasSolution())

		require.NoError(t, utils.ValidateSchedule(p, s.Assignments))

		wages := make(map[string]float64)
		for _, e := range in.Employees {
			wages[e.ID] = e.HourlyWage
		}
		cost := 0.0
		for _, a := range s.Assignments {
			cost += a.Hours * wages[a.EmployeeID]
		}
		assert.InDelta(t, cost, s.Metrics.TotalCost, 1e-6)
		assert.False(t, math.IsInf(s.SolveInfo.Gap, 0))
	}
}

func TestTotalCostIndependentOfPenaltyWeights(t *testing.T) {
	p := newProblem(t, smallStore())

	for _, weight := range []float64{0, 1, 500, 1e6} {
		cfg := DefaultConfig()
		cfg.Coverage = Soft(weight)
		s, err := New(nil, discard).Schedule(context.Background(), p, cfg)
		require.NoError(t, err)

		cost := 0.0
		for _, a := range s.Assignments {
			if a.Role == domain.RoleSupervisor {
				cost += a.Hours * 22
			} else {
				cost += a.Hours * 15
			}
		}
		assert.InDelta(t, cost, s.Metrics.TotalCost, 1e-6, "weight %v", weight)
	}
}

func TestScheduleIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p := newProblem(t, randomStore(rng))
	cfg := DefaultConfig()
	cfg.SupervisorPresence = Soft(100)

	first, err := New(nil, discard).Schedule(context.Background(), p, cfg)
	require.NoError(t, err)
	second, err := New(nil, discard).Schedule(context.Background(), p, cfg)
	require.NoError(t, err)

	if first.Status == domain.StatusOptimal && second.Status == domain.StatusOptimal {
		assert.InDelta(t, first.Metrics.Objective, second.Metrics.Objective, 1e-6)
		assert.Equal(t, first.Metrics.TotalCost, second.Metrics.TotalCost)
	}
}

func TestOvertimeCap(t *testing.T) {
	start := mustDate("2024-03-04")
	in := domain.ProblemInput{
		Horizon: domain.Horizon{Start: start, End: start.AddDate(0, 0, 6)},
		Employees: []domain.Employee{
			{ID: "EMP001", Name: "Alice", Role: domain.RoleFrontLine, HourlyWage: 10, WeeklyHoursCap: 60, EmploymentClass: domain.EmploymentPartTime},
			{ID: "EMP002", Name: "Bob", Role: domain.RoleFrontLine, HourlyWage: 30, WeeklyHoursCap: 60, EmploymentClass: domain.EmploymentFullTime},
		},
		Shifts:              []domain.Shift{{Name: "day", DurationHours: 8}},
		DefaultAvailability: domain.AvailabilityAvailable,
	}
	for _, day := range in.Horizon.Days() {
		in.Demand = append(in.Demand, domain.DemandRequirement{Date: day, Shift: "day", Role: domain.RoleFrontLine, RequiredHeadcount: 1})
	}
	p := newProblem(t, in)

	cfg := DefaultConfig()
	cfg.OvertimePenalty = 0
	zero := 0.0
	cfg.OvertimeCapHours = &zero

	s, err := New(nil, discard).Schedule(context.Background(), p, cfg)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOptimal, s.Status)

	// 兼职阈值 30 小时，最多排 3 个 8 小时的班次
	assert.InDelta(t, 24.0, s.Metrics.HoursByEmployee["EMP001"], 1e-9)
	assert.InDelta(t, 32.0, s.Metrics.HoursByEmployee["EMP002"], 1e-9)
	assert.Zero(t, s.Metrics.OvertimeHoursTotal)
}

func TestComputeMetricsPreferenceAndPenalty(t *testing.T) {
	in := smallStore()
	w := 2.0
	in.Availability = []domain.AvailabilitySlot{
		{EmployeeID: "EMP001", Date: in.Horizon.Start, Shift: "day", Available: true, PreferenceWeight: &w},
	}
	p := newProblem(t, in)
	cfg := DefaultConfig()

	assignments := []domain.Assignment{
		{EmployeeID: "EMP001", Date: in.Horizon.Start, Shift: "day", Role: domain.RoleFrontLine, Hours: 8},
		{EmployeeID: "EMP003", Date: in.Horizon.Start, Shift: "day", Role: domain.RoleSupervisor, Hours: 8},
	}
	m, err := ComputeMetrics(p, cfg, assignments)
	require.NoError(t, err)

	assert.Equal(t, 1, m.PreferenceMatches)
	assert.InDelta(t, 10.0, m.PreferenceBonus, 1e-9)
	assert.Equal(t, 1, m.UnmetDemand)
	assert.InDelta(t, 500.0, m.PenaltyCost, 1e-9)
	assert.InDelta(t, 120.0+176.0, m.TotalCost, 1e-9)
	assert.InDelta(t, m.TotalCost+m.PenaltyCost-m.PreferenceBonus, m.Objective, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.OverallCoverage, 1e-9)
	assert.Equal(t, "50%", coverageOf(t, &domain.Schedule{Metrics: m}, domain.RoleFrontLine).DisplayRatio())
	assert.Equal(t, 2, m.EmployeesScheduled)
	assert.InDelta(t, 2.0, m.AvgStaffPerDay, 1e-9)
}
