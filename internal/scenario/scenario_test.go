package scenario

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func mustDate(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// baselineInput 三天、两个班次的小店
func baselineInput() domain.ProblemInput {
	start := mustDate("2024-03-04")
	w := 1.0
	in := domain.ProblemInput{
		Horizon: domain.Horizon{Start: start, End: start.AddDate(0, 0, 2)},
		Employees: []domain.Employee{
			{ID: "EMP001", Name: "Alice", Role: domain.RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP002", Name: "Bob", Role: domain.RoleFrontLine, HourlyWage: 16, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP003", Name: "Carol", Role: domain.RoleFrontLine, HourlyWage: 18, WeeklyHoursCap: 24, EmploymentClass: domain.EmploymentPartTime},
			{ID: "EMP004", Name: "Dave", Role: domain.RoleSupervisor, HourlyWage: 22, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP005", Name: "Erin", Role: domain.RoleSupervisor, HourlyWage: 24, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
		},
		Shifts: []domain.Shift{
			{Name: "morning", DurationHours: 6},
			{Name: "evening", DurationHours: 6},
		},
		Availability: []domain.AvailabilitySlot{
			{EmployeeID: "EMP002", Date: start, Shift: "morning", Available: true, PreferenceWeight: &w},
			{EmployeeID: "EMP003", Date: start.AddDate(0, 0, 1), Shift: "evening", Available: false},
		},
		DefaultAvailability: domain.AvailabilityAvailable,
	}
	for _, day := range in.Horizon.Days() {
		for _, shift := range in.Shifts {
			in.Demand = append(in.Demand,
				domain.DemandRequirement{Date: day, Shift: shift.Name, Role: domain.RoleFrontLine, RequiredHeadcount: 1},
				domain.DemandRequirement{Date: day, Shift: shift.Name, Role: domain.RoleSupervisor, RequiredHeadcount: 1},
			)
		}
	}
	return in
}

func TestScaleDemand(t *testing.T) {
	in := baselineInput()
	in.Demand[0].RequiredHeadcount = 3

	cases := []struct {
		factor float64
		want   int
	}{
		{1, 3},
		{1.5, 5}, // 4.5 向上取整
		{0.5, 2},
		{2.0 / 3.0, 2}, // 浮点误差不会多算一人
		{0, 0},
	}
	for _, tc := range cases {
		out := ScaleDemand(in, tc.factor)
		assert.Equal(t, tc.want, out.Demand[0].RequiredHeadcount, "factor %v", tc.factor)
	}
	assert.Equal(t, 3, in.Demand[0].RequiredHeadcount)
}

func TestApplyDoesNotMutateBaseline(t *testing.T) {
	p, err := domain.NewProblem(baselineInput())
	require.NoError(t, err)
	before := p.Input()

	sc := Scenario{Name: "全部", Perturbations: []Perturbation{
		DemandMultiplier(2),
		Absence(mustDate("2024-03-04"), mustDate("2024-03-05"), "EMP002"),
		HeadcountDelta(domain.RoleSupervisor, 1),
		HeadcountDelta(domain.RoleFrontLine, -1),
		HolidaySurge(1.5, mustDate("2024-03-06")),
	}}
	out, err := sc.Apply(p.Input())
	require.NoError(t, err)
	out.Employees[0].HourlyWage = 999
	out.Demand[0].RequiredHeadcount = 42

	scaled, err := Scenario{Perturbations: []Perturbation{DemandMultiplier(1)}}.Apply(p.Input())
	require.NoError(t, err)
	*scaled.Availability[0].PreferenceWeight = 100

	assert.Equal(t, before, p.Input())
}

func TestAbsence(t *testing.T) {
	in := baselineInput()
	out, err := Scenario{Perturbations: []Perturbation{
		Absence(mustDate("2024-03-04"), mustDate("2024-03-05"), "EMP002"),
	}}.Apply(in)
	require.NoError(t, err)

	p, err := domain.NewProblem(out)
	require.NoError(t, err)
	e, ok := p.EmployeeIndex("EMP002")
	require.True(t, ok)

	for d := 0; d < p.NumDays(); d++ {
		for s := 0; s < p.NumShifts(); s++ {
			eligible := p.Eligible(domain.SlotKey{Employee: e, Day: d, Shift: s})
			assert.Equal(t, d == 2, eligible, "day %d shift %d", d, s)
		}
	}
	// 被覆盖的偏好记录不再生效
	_, ok = p.Preference(domain.SlotKey{Employee: e, Day: 0, Shift: 0})
	assert.False(t, ok)
}

func TestHeadcountDelta(t *testing.T) {
	in := baselineInput()

	t.Run("增加", func(t *testing.T) {
		out, err := Scenario{Perturbations: []Perturbation{HeadcountDelta(domain.RoleFrontLine, 2)}}.Apply(in)
		require.NoError(t, err)
		require.Len(t, out.Employees, 7)

		// 三名前台中工资居中的是 EMP002
		added := out.Employees[5:]
		assert.Equal(t, "EMP002-SYN01", added[0].ID)
		assert.Equal(t, "EMP002-SYN02", added[1].ID)
		assert.Equal(t, 16.0, added[0].HourlyWage)

		slots := 0
		for _, s := range out.Availability {
			if s.EmployeeID == "EMP002-SYN01" {
				slots++
				require.NotNil(t, s.PreferenceWeight)
			}
		}
		assert.Equal(t, 1, slots)

		_, err = domain.NewProblem(out)
		require.NoError(t, err)
	})

	t.Run("减少", func(t *testing.T) {
		out, err := Scenario{Perturbations: []Perturbation{HeadcountDelta(domain.RoleFrontLine, -2)}}.Apply(in)
		require.NoError(t, err)

		ids := make([]string, 0)
		for _, e := range out.Employees {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{"EMP001", "EMP004", "EMP005"}, ids)
		for _, s := range out.Availability {
			assert.NotEqual(t, "EMP003", s.EmployeeID)
		}
	})

	t.Run("超过现有人数", func(t *testing.T) {
		out, err := Scenario{Perturbations: []Perturbation{HeadcountDelta(domain.RoleSupervisor, -5)}}.Apply(in)
		require.NoError(t, err)
		assert.Len(t, out.Employees, 3)
	})
}

func TestHolidaySurge(t *testing.T) {
	in := baselineInput()
	out, err := Scenario{Perturbations: []Perturbation{HolidaySurge(2, mustDate("2024-03-05"))}}.Apply(in)
	require.NoError(t, err)

	for _, d := range out.Demand {
		want := 1
		if d.Date.Equal(mustDate("2024-03-05")) {
			want = 2
		}
		assert.Equal(t, want, d.RequiredHeadcount)
	}
}

func TestApplyInvalid(t *testing.T) {
	cases := []struct {
		name string
		p    Perturbation
	}{
		{"负倍数", DemandMultiplier(-1)},
		{"未知员工", Absence(mustDate("2024-03-04"), mustDate("2024-03-04"), "EMP999")},
		{"日期颠倒", Absence(mustDate("2024-03-05"), mustDate("2024-03-04"), "EMP001")},
		{"没有员工", Absence(mustDate("2024-03-04"), mustDate("2024-03-04"))},
		{"未知角色", HeadcountDelta("cashier", 1)},
		{"没有样本", HeadcountDelta(domain.RoleStock, 1)},
		{"节假日没有日期", HolidaySurge(2)},
		{"未知类型", Perturbation{Kind: "earthquake"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Scenario{Perturbations: []Perturbation{tc.p}}.Apply(baselineInput())
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "perturbations[0]", verr.Issues[0].Field)
		})
	}
}

func TestRunAllUnitFactorMatchesBaseline(t *testing.T) {
	p, err := domain.NewProblem(baselineInput())
	require.NoError(t, err)

	for _, c := range []cache.Cache{cache.NewMemory(0), cache.Nop{}} {
		engine := NewEngine(scheduler.New(c, discard), discard, 2)
		report, err := engine.RunAll(context.Background(), p, scheduler.DefaultConfig(), []Scenario{
			{Name: "不变", Perturbations: []Perturbation{DemandMultiplier(1)}},
			{Name: "节假日不变", Perturbations: []Perturbation{HolidaySurge(1, mustDate("2024-03-04"))}},
		})
		require.NoError(t, err)
		require.Len(t, report.Comparisons, 2)
		assert.NotEmpty(t, report.RunID)
		require.Equal(t, domain.StatusOptimal, report.Baseline.Status)

		for _, cmp := range report.Comparisons {
			assert.Equal(t, report.Baseline.Metrics, cmp.Schedule.Metrics, cmp.Scenario.Name)
			assert.Zero(t, cmp.Delta.Cost)
			assert.Zero(t, cmp.Delta.Hours)
			assert.Zero(t, cmp.Delta.Overtime)
			assert.Zero(t, cmp.Delta.Coverage)
			for _, rd := range cmp.Delta.CoverageByRequirement {
				assert.Zero(t, rd.Delta)
			}
		}
	}
}

func TestRunAbsenceLowersCoverage(t *testing.T) {
	// 两名主管同一天请假，当天的主管需求无法满足
	p, err := domain.NewProblem(baselineInput())
	require.NoError(t, err)

	engine := NewEngine(scheduler.New(cache.NewMemory(0), discard), discard, 1)
	cmp, base, err := engine.Run(context.Background(), p, scheduler.DefaultConfig(), Scenario{
		Name:          "主管请假",
		Perturbations: []Perturbation{Absence(mustDate("2024-03-04"), mustDate("2024-03-04"), "EMP004", "EMP005")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, base.Status)
	assert.Equal(t, domain.StatusFeasible, cmp.Schedule.Status)
	assert.Equal(t, []domain.ConstraintFamily{domain.FamilySupervisor}, cmp.Schedule.Relaxed)
	assert.Less(t, cmp.Delta.Coverage, 0.0)

	lowered := 0
	for _, rd := range cmp.Delta.CoverageByRequirement {
		if rd.Role == domain.RoleSupervisor && rd.Date.Equal(mustDate("2024-03-04")) {
			assert.Equal(t, 0.0, rd.Scenario)
			assert.Equal(t, -1.0, rd.Delta)
			lowered++
		}
	}
	assert.Equal(t, 2, lowered)
}

func TestRunAllRejectsInvalidScenario(t *testing.T) {
	p, err := domain.NewProblem(baselineInput())
	require.NoError(t, err)

	engine := NewEngine(scheduler.New(nil, discard), discard, 4)
	_, err = engine.RunAll(context.Background(), p, scheduler.DefaultConfig(), []Scenario{
		{Name: "ok", Perturbations: []Perturbation{DemandMultiplier(1.2)}},
		{Name: "bad", Perturbations: []Perturbation{Absence(mustDate("2024-03-04"), mustDate("2024-03-04"), "ghost")}},
	})

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestCompareMissingRequirement(t *testing.T) {
	day := mustDate("2024-03-04")
	base := &domain.Schedule{Metrics: domain.Metrics{
		TotalCost: 100, OverallCoverage: 1,
		Coverage: []domain.CoverageEntry{{Date: day, Shift: "morning", Role: domain.RoleFrontLine, Required: 1, Assigned: 1, Ratio: 1}},
	}}
	sc := &domain.Schedule{Metrics: domain.Metrics{
		TotalCost: 80, OverallCoverage: 0.5,
		Coverage: []domain.CoverageEntry{{Date: day, Shift: "evening", Role: domain.RoleFrontLine, Required: 2, Assigned: 1, Ratio: 0.5}},
	}}

	d := Compare(base, sc)
	assert.Equal(t, -20.0, d.Cost)
	assert.Equal(t, -0.5, d.Coverage)
	require.Len(t, d.CoverageByRequirement, 2)
	assert.Equal(t, "evening", d.CoverageByRequirement[0].Shift)
	assert.Equal(t, 1.0, d.CoverageByRequirement[0].Baseline)
	assert.Equal(t, -0.5, d.CoverageByRequirement[0].Delta)
	assert.Equal(t, 0.0, d.CoverageByRequirement[1].Delta)
}
