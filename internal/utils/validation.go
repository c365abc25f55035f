package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

const hoursTolerance = 1e-9

func ValidateShiftTemplateTime(st *domain.ShiftTemplate) error {
	if len(st.Shifts) == 0 {
		return errors.New("班次模板中至少需要一个班次")
	}

	// 检查每一个班次的结束时间是不是都大于开始时间
	seen := make(map[string]bool, len(st.Shifts))
	for id, shift := range st.Shifts {
		if seen[shift.Name] {
			return fmt.Errorf("班次名称 %q 重复", shift.Name)
		}
		seen[shift.Name] = true

		startTime, err := time.Parse("15:04:05", shift.StartTime)
		if err != nil {
			return fmt.Errorf("班次 %d 的开始时间格式错误", id)
		}
		endTime, err := time.Parse("15:04:05", shift.EndTime)
		if err != nil {
			return fmt.Errorf("班次 %d 的结束时间格式错误", id)
		}
		if !endTime.After(startTime) {
			return fmt.Errorf("班次 %d 的结束时间必须大于开始时间", id)
		}
	}

	// 检查各个班次之间的时间是否冲突
	for i := 0; i < len(st.Shifts); i++ {
		iStartTime, _ := time.Parse("15:04:05", st.Shifts[i].StartTime)
		iEndTime, _ := time.Parse("15:04:05", st.Shifts[i].EndTime)

		for j := i + 1; j < len(st.Shifts); j++ {
			jStartTime, _ := time.Parse("15:04:05", st.Shifts[j].StartTime)
			jEndTime, _ := time.Parse("15:04:05", st.Shifts[j].EndTime)

			if !(jStartTime.After(iEndTime) || jStartTime.Equal(iEndTime) || iStartTime.After(jEndTime) || iStartTime.Equal(jEndTime)) {
				return fmt.Errorf("班次 %d 和班次 %d 之间的时间冲突", i, j)
			}
		}
	}
	return nil
}

func ValidateSchedulePlanHorizon(plan *domain.SchedulePlan) error {
	h := plan.Horizon()
	if domain.Day(h.End).Before(domain.Day(h.Start)) {
		return fmt.Errorf("规划结束日期不能早于开始日期")
	}

	if h.NumDays() > domain.MaxHorizonDays {
		return fmt.Errorf("规划周期不能超过 %d 天", domain.MaxHorizonDays)
	}

	switch plan.DefaultAvailability {
	case domain.AvailabilityUnavailable, domain.AvailabilityAvailable:
	default:
		return fmt.Errorf("未知的默认可用性策略 %q", plan.DefaultAvailability)
	}

	return nil
}

func resolveAssignment(p *domain.Problem, a domain.Assignment) (domain.SlotKey, error) {
	e, ok := p.EmployeeIndex(a.EmployeeID)
	if !ok {
		return domain.SlotKey{}, fmt.Errorf("员工 %q 不存在", a.EmployeeID)
	}
	d, ok := p.Horizon().Index(a.Date)
	if !ok {
		return domain.SlotKey{}, fmt.Errorf("日期 %s 不在规划周期内", domain.FormatDate(a.Date))
	}
	s, ok := p.ShiftIndex(a.Shift)
	if !ok {
		return domain.SlotKey{}, fmt.Errorf("班次 %q 不存在", a.Shift)
	}
	return domain.SlotKey{Employee: e, Day: d, Shift: s}, nil
}

// ValidateScheduleAvailability 每一条排班都必须对应一个可用的时段
func ValidateScheduleAvailability(p *domain.Problem, assignments []domain.Assignment) error {
	for _, a := range assignments {
		key, err := resolveAssignment(p, a)
		if err != nil {
			return err
		}
		if !p.Eligible(key) {
			return fmt.Errorf("员工 %q 在 %s 的班次 %q 没有空闲时间", a.EmployeeID, domain.FormatDate(a.Date), a.Shift)
		}
	}
	return nil
}

// ValidateNoDoubleBooking 每人每天最多一个班次
func ValidateNoDoubleBooking(p *domain.Problem, assignments []domain.Assignment) error {
	seen := make(map[[2]int]string, len(assignments))
	for _, a := range assignments {
		key, err := resolveAssignment(p, a)
		if err != nil {
			return err
		}
		day := [2]int{key.Employee, key.Day}
		if shift, exists := seen[day]; exists {
			if shift == a.Shift {
				return fmt.Errorf("员工 %q 在 %s 的班次 %q 中重复出现", a.EmployeeID, domain.FormatDate(a.Date), a.Shift)
			}
			return fmt.Errorf("员工 %q 在 %s 同时被排了班次 %q 和 %q", a.EmployeeID, domain.FormatDate(a.Date), shift, a.Shift)
		}
		seen[day] = a.Shift
	}
	return nil
}

// ValidateRollingHoursCap 任意连续 7 天内的工时不超过员工的每周上限
func ValidateRollingHoursCap(p *domain.Problem, assignments []domain.Assignment) error {
	daily := make([][]float64, p.NumEmployees())
	for e := range daily {
		daily[e] = make([]float64, p.NumDays())
	}
	for _, a := range assignments {
		key, err := resolveAssignment(p, a)
		if err != nil {
			return err
		}
		daily[key.Employee][key.Day] += p.Hours(key.Day, key.Shift)
	}

	for e, hours := range daily {
		emp := p.Employee(e)
		for _, w := range domain.RollingWindows(p.NumDays()) {
			total := 0.0
			for d := w[0]; d < w[1]; d++ {
				total += hours[d]
			}
			if total > float64(emp.WeeklyHoursCap)+hoursTolerance {
				return fmt.Errorf("员工 %q 在 %s 起的 7 天内工作 %.1f 小时，超过上限 %d 小时",
					emp.ID, domain.FormatDate(p.Date(w[0])), total, emp.WeeklyHoursCap)
			}
		}
	}
	return nil
}

// ValidateSchedule 检查排班是否满足所有必须满足的约束
func ValidateSchedule(p *domain.Problem, assignments []domain.Assignment) error {
	if err := ValidateScheduleAvailability(p, assignments); err != nil {
		return err
	}
	if err := ValidateNoDoubleBooking(p, assignments); err != nil {
		return err
	}
	return ValidateRollingHoursCap(p, assignments)
}
