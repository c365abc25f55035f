package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func validInput() ProblemInput {
	w := 2.0
	return ProblemInput{
		Horizon: Horizon{Start: date("2024-01-01"), End: date("2024-01-03")},
		Employees: []Employee{
			{ID: "EMP002", Name: "Bob", Role: RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 40, EmploymentClass: EmploymentFullTime},
			{ID: "EMP001", Name: "Alice", Role: RoleSupervisor, HourlyWage: 22, WeeklyHoursCap: 40, EmploymentClass: EmploymentFullTime},
		},
		Shifts: []Shift{{Name: "morning", DurationHours: 8}, {Name: "evening", DurationHours: 6}},
		ShiftOverrides: []ShiftOverride{
			{Date: date("2024-01-02"), Shift: "evening", DurationHours: 4},
		},
		Availability: []AvailabilitySlot{
			{EmployeeID: "EMP001", Date: date("2024-01-01"), Shift: "morning", Available: true, PreferenceWeight: &w},
			{EmployeeID: "EMP002", Date: date("2024-01-01"), Shift: "morning", Available: false},
		},
		Demand: []DemandRequirement{
			{Date: date("2024-01-01"), Shift: "morning", Role: RoleFrontLine, RequiredHeadcount: 1},
		},
	}
}

func requireIssues(t *testing.T, err error) []ValidationIssue {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	require.NotEmpty(t, verr.Issues)
	return verr.Issues
}

func TestNewProblem(t *testing.T) {
	p, err := NewProblem(validInput())
	require.NoError(t, err)

	assert.Equal(t, 3, p.NumDays())
	assert.Equal(t, 2, p.NumShifts())
	assert.Equal(t, AvailabilityUnavailable, p.DefaultAvailability())

	// 员工按 ID 排序
	assert.Equal(t, "EMP001", p.Employee(0).ID)
	assert.Equal(t, "EMP002", p.Employee(1).ID)

	evening, ok := p.ShiftIndex("evening")
	require.True(t, ok)
	assert.Equal(t, 6.0, p.Hours(0, evening))
	assert.Equal(t, 4.0, p.Hours(1, evening))

	assert.True(t, p.Eligible(SlotKey{Employee: 0, Day: 0, Shift: 0}))
	assert.False(t, p.Eligible(SlotKey{Employee: 1, Day: 0, Shift: 0}))
	// 没有记录时按默认策略处理
	assert.False(t, p.Eligible(SlotKey{Employee: 1, Day: 2, Shift: 1}))

	pref, ok := p.Preference(SlotKey{Employee: 0, Day: 0, Shift: 0})
	assert.True(t, ok)
	assert.Equal(t, 2.0, pref)

	assert.Equal(t, 1, p.Demand(0, 0, RoleFrontLine))
	assert.Equal(t, 0, p.Demand(1, 0, RoleFrontLine))
	assert.True(t, p.HasSupervisors())
}

func TestNewProblemDefaultAvailable(t *testing.T) {
	in := validInput()
	in.DefaultAvailability = AvailabilityAvailable

	p, err := NewProblem(in)
	require.NoError(t, err)
	assert.True(t, p.Eligible(SlotKey{Employee: 1, Day: 2, Shift: 1}))
	assert.False(t, p.Eligible(SlotKey{Employee: 1, Day: 0, Shift: 0}))
}

func TestNewProblemRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ProblemInput)
	}{
		{"工资为 0", func(in *ProblemInput) { in.Employees[0].HourlyWage = 0 }},
		{"工资为负", func(in *ProblemInput) { in.Employees[0].HourlyWage = -3 }},
		{"每周工时上限为 0", func(in *ProblemInput) { in.Employees[0].WeeklyHoursCap = 0 }},
		{"需求人数为负", func(in *ProblemInput) { in.Demand[0].RequiredHeadcount = -1 }},
		{"需求日期超出周期", func(in *ProblemInput) { in.Demand[0].Date = date("2024-01-04") }},
		{"需求引用未声明的班次", func(in *ProblemInput) { in.Demand[0].Shift = "night" }},
		{"可用性日期超出周期", func(in *ProblemInput) { in.Availability[0].Date = date("2023-12-31") }},
		{"可用性引用未声明的班次", func(in *ProblemInput) { in.Availability[0].Shift = "night" }},
		{"可用性引用不存在的员工", func(in *ProblemInput) { in.Availability[0].EmployeeID = "EMP999" }},
		{"未知角色", func(in *ProblemInput) { in.Employees[0].Role = "cashier" }},
		{"未知雇佣类型", func(in *ProblemInput) { in.Employees[0].EmploymentClass = "contract" }},
		{"员工 ID 重复", func(in *ProblemInput) { in.Employees[1].ID = in.Employees[0].ID }},
		{"班次重复", func(in *ProblemInput) { in.Shifts[1].Name = "morning" }},
		{"没有班次", func(in *ProblemInput) { in.Shifts = nil; in.Demand = nil; in.Availability = nil; in.ShiftOverrides = nil }},
		{"班次时长为 0", func(in *ProblemInput) { in.Shifts[0].DurationHours = 0 }},
		{"结束日期早于开始日期", func(in *ProblemInput) { in.Horizon.End = date("2023-12-01") }},
		{"需求重复", func(in *ProblemInput) { in.Demand = append(in.Demand, in.Demand[0]) }},
		{"可用性重复", func(in *ProblemInput) { in.Availability = append(in.Availability, in.Availability[0]) }},
		{"偏好权重为负", func(in *ProblemInput) { w := -1.0; in.Availability[0].PreferenceWeight = &w }},
		{"未知默认策略", func(in *ProblemInput) { in.DefaultAvailability = "maybe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			p, err := NewProblem(in)
			assert.Nil(t, p)
			requireIssues(t, err)
		})
	}
}

func TestValidationMessagesAreTranslated(t *testing.T) {
	in := validInput()
	in.Employees[0].HourlyWage = 0

	_, err := NewProblem(in)
	issues := requireIssues(t, err)
	assert.Equal(t, "employees[0].hourlyWage", issues[0].Field)
	assert.Contains(t, issues[0].Message, "必须大于")
}

func TestInputIsDeepCopy(t *testing.T) {
	p, err := NewProblem(validInput())
	require.NoError(t, err)

	in := p.Input()
	in.Employees[0].HourlyWage = 99
	*in.Availability[0].PreferenceWeight = 100
	in.Demand[0].RequiredHeadcount = 7

	again := p.Input()
	assert.NotEqual(t, 99.0, again.Employees[0].HourlyWage)
	assert.Equal(t, 2.0, *again.Availability[0].PreferenceWeight)
	assert.Equal(t, 1, p.Demand(0, 0, RoleFrontLine))
}

func TestNewProblemDoesNotAliasCaller(t *testing.T) {
	in := validInput()
	p, err := NewProblem(in)
	require.NoError(t, err)

	in.Employees[0].HourlyWage = 1000
	*in.Availability[0].PreferenceWeight = 50

	for _, e := range p.Employees() {
		assert.NotEqual(t, 1000.0, e.HourlyWage)
	}
	pref, _ := p.Preference(SlotKey{Employee: 0, Day: 0, Shift: 0})
	assert.Equal(t, 2.0, pref)
}

func TestHorizon(t *testing.T) {
	h := Horizon{Start: date("2024-01-30"), End: date("2024-02-02")}
	assert.Equal(t, 4, h.NumDays())

	i, ok := h.Index(date("2024-02-01"))
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = h.Index(date("2024-02-03"))
	assert.False(t, ok)

	loc := time.FixedZone("UTC+8", 8*3600)
	assert.Equal(t, date("2024-01-31"), Day(time.Date(2024, 1, 31, 23, 30, 0, 0, loc)))
}

func TestCoverageDisplayRatio(t *testing.T) {
	assert.Equal(t, "100%+", CoverageEntry{Ratio: 1.5}.DisplayRatio())
	assert.Equal(t, "100%", CoverageEntry{Ratio: 1}.DisplayRatio())
	assert.Equal(t, "50%", CoverageEntry{Ratio: 0.5}.DisplayRatio())
}

func TestRollingWindows(t *testing.T) {
	assert.Nil(t, RollingWindows(0))
	assert.Equal(t, [][2]int{{0, 3}}, RollingWindows(3))
	assert.Equal(t, [][2]int{{0, 7}}, RollingWindows(7))
	assert.Equal(t, [][2]int{{0, 7}, {1, 8}, {2, 9}}, RollingWindows(9))
}

func TestCalendarWeeks(t *testing.T) {
	// 2024-01-05 是周五，2024-01-08 是周一
	h := Horizon{Start: date("2024-01-05"), End: date("2024-01-16")}
	weeks := h.CalendarWeeks()
	require.Len(t, weeks, 3)
	assert.Equal(t, []int{0, 1, 2}, weeks[0])
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, weeks[1])
	assert.Equal(t, []int{10, 11}, weeks[2])
}
