package utils

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// ShiftsFromTemplate 把班次模板转换为求解用的班次，时长由起止时间计算
func ShiftsFromTemplate(st *domain.ShiftTemplate) ([]domain.Shift, error) {
	shifts := make([]domain.Shift, 0, len(st.Shifts))
	for _, shift := range st.Shifts {
		startTime, err := time.Parse("15:04:05", shift.StartTime)
		if err != nil {
			return nil, fmt.Errorf("班次 %q 的开始时间格式错误", shift.Name)
		}
		endTime, err := time.Parse("15:04:05", shift.EndTime)
		if err != nil {
			return nil, fmt.Errorf("班次 %q 的结束时间格式错误", shift.Name)
		}
		shifts = append(shifts, domain.Shift{
			Name:          shift.Name,
			DurationHours: endTime.Sub(startTime).Hours(),
		})
	}
	return shifts, nil
}

// BuildProblemInput 用排班计划及其关联数据组装求解输入
func BuildProblemInput(
	plan *domain.SchedulePlan,
	template *domain.ShiftTemplate,
	employees []*domain.Employee,
	availability []*domain.AvailabilitySlot,
	demand []*domain.DemandRequirement,
) (domain.ProblemInput, error) {
	shifts, err := ShiftsFromTemplate(template)
	if err != nil {
		return domain.ProblemInput{}, err
	}

	in := domain.ProblemInput{
		Horizon:             plan.Horizon(),
		Shifts:              shifts,
		DefaultAvailability: plan.DefaultAvailability,
		Employees:           make([]domain.Employee, 0, len(employees)),
		Availability:        make([]domain.AvailabilitySlot, 0, len(availability)),
		Demand:              make([]domain.DemandRequirement, 0, len(demand)),
	}
	for _, e := range employees {
		in.Employees = append(in.Employees, *e)
	}
	for _, a := range availability {
		in.Availability = append(in.Availability, *a)
	}
	for _, d := range demand {
		in.Demand = append(in.Demand, *d)
	}

	return in, nil
}
