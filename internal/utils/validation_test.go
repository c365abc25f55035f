package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func mustDate(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateShiftTemplateTime(t *testing.T) {
	shift := func(name, start, end string) domain.ShiftTemplateShift {
		return domain.ShiftTemplateShift{Name: name, StartTime: start, EndTime: end}
	}

	cases := []struct {
		name    string
		shifts  []domain.ShiftTemplateShift
		wantErr bool
	}{
		{"正常", []domain.ShiftTemplateShift{shift("早班", "08:00:00", "14:00:00"), shift("晚班", "14:00:00", "20:00:00")}, false},
		{"没有班次", nil, true},
		{"名称重复", []domain.ShiftTemplateShift{shift("早班", "08:00:00", "10:00:00"), shift("早班", "10:00:00", "12:00:00")}, true},
		{"结束早于开始", []domain.ShiftTemplateShift{shift("早班", "14:00:00", "08:00:00")}, true},
		{"格式错误", []domain.ShiftTemplateShift{shift("早班", "8点", "14:00:00")}, true},
		{"时间冲突", []domain.ShiftTemplateShift{shift("早班", "08:00:00", "14:00:00"), shift("午班", "12:00:00", "16:00:00")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateShiftTemplateTime(&domain.ShiftTemplate{Name: "模板", Shifts: tc.shifts})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShiftsFromTemplate(t *testing.T) {
	shifts, err := ShiftsFromTemplate(&domain.ShiftTemplate{Shifts: []domain.ShiftTemplateShift{
		{Name: "早班", StartTime: "08:00:00", EndTime: "14:30:00"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []domain.Shift{{Name: "早班", DurationHours: 6.5}}, shifts)
}

func validationProblem(t *testing.T) *domain.Problem {
	t.Helper()
	start := mustDate("2024-03-04")
	p, err := domain.NewProblem(domain.ProblemInput{
		Horizon: domain.Horizon{Start: start, End: start.AddDate(0, 0, 7)},
		Employees: []domain.Employee{
			{ID: "EMP001", Role: domain.RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 16, EmploymentClass: domain.EmploymentFullTime},
			{ID: "EMP002", Role: domain.RoleSupervisor, HourlyWage: 22, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
		},
		Shifts: []domain.Shift{{Name: "morning", DurationHours: 8}, {Name: "evening", DurationHours: 8}},
		Availability: []domain.AvailabilitySlot{
			{EmployeeID: "EMP002", Date: start, Shift: "evening", Available: false},
		},
		DefaultAvailability: domain.AvailabilityAvailable,
	})
	require.NoError(t, err)
	return p
}

func TestValidateSchedule(t *testing.T) {
	p := validationProblem(t)
	a := func(id string, date string, shift string) domain.Assignment {
		return domain.Assignment{EmployeeID: id, Date: mustDate(date), Shift: shift}
	}

	cases := []struct {
		name        string
		assignments []domain.Assignment
		want        string
	}{
		{"合法", []domain.Assignment{a("EMP001", "2024-03-04", "morning"), a("EMP001", "2024-03-05", "evening")}, ""},
		{"不可用", []domain.Assignment{a("EMP002", "2024-03-04", "evening")}, "没有空闲时间"},
		{"未知员工", []domain.Assignment{a("EMP404", "2024-03-04", "evening")}, "不存在"},
		{"超出周期", []domain.Assignment{a("EMP001", "2024-04-04", "evening")}, "不在规划周期内"},
		{"未知班次", []domain.Assignment{a("EMP001", "2024-03-04", "night")}, "不存在"},
		{"同一天两个班次", []domain.Assignment{a("EMP001", "2024-03-04", "morning"), a("EMP001", "2024-03-04", "evening")}, "同时被排了"},
		{"重复", []domain.Assignment{a("EMP001", "2024-03-04", "morning"), a("EMP001", "2024-03-04", "morning")}, "重复出现"},
		{"超过每周上限", []domain.Assignment{
			a("EMP001", "2024-03-05", "morning"), a("EMP001", "2024-03-07", "morning"), a("EMP001", "2024-03-11", "morning"),
		}, "超过上限"},
		// 3 月 4 日与 3 月 11 日不在同一个 7 天窗口内
		{"窗口之外", []domain.Assignment{a("EMP001", "2024-03-04", "morning"), a("EMP001", "2024-03-10", "morning"), a("EMP001", "2024-03-11", "morning")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchedule(p, tc.assignments)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
