package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/solver"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

// extract 把求解器的变量取值还原为排班，并重新检查所有硬约束
func extract(p *domain.Problem, cfg Config, b *builtModel, sol *solver.Solution) ([]domain.Assignment, domain.Metrics, error) {
	keys := make([]domain.SlotKey, 0)
	for i, on := range sol.Values {
		if on {
			keys = append(keys, b.vars[i].key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		if keys[i].Shift != keys[j].Shift {
			return keys[i].Shift < keys[j].Shift
		}
		return keys[i].Employee < keys[j].Employee
	})

	assignments := make([]domain.Assignment, len(keys))
	for i, key := range keys {
		emp := p.Employee(key.Employee)
		assignments[i] = domain.Assignment{
			EmployeeID: emp.ID,
			Date:       p.Date(key.Day),
			Shift:      p.Shift(key.Shift).Name,
			Role:       emp.Role,
			Hours:      p.Hours(key.Day, key.Shift),
		}
	}

	// 结果必须满足所有硬约束，否则说明求解器本身有问题
	if err := utils.ValidateSchedule(p, assignments); err != nil {
		return nil, domain.Metrics{}, err
	}

	metrics, supervisorsMissing, err := computeMetrics(p, cfg, assignments)
	if err != nil {
		return nil, domain.Metrics{}, err
	}
	if err := checkHardRules(p, cfg, assignments, metrics, supervisorsMissing); err != nil {
		return nil, domain.Metrics{}, err
	}

	if diff := math.Abs(metrics.Objective - sol.Objective); diff > 1e-6*math.Max(1, math.Abs(sol.Objective)) {
		return nil, domain.Metrics{}, fmt.Errorf("排班指标的目标值 %.6f 与求解器的目标值 %.6f 不一致", metrics.Objective, sol.Objective)
	}

	return assignments, metrics, nil
}

// checkHardRules 检查配置为硬约束的覆盖、主管在岗以及加班上限
func checkHardRules(p *domain.Problem, cfg Config, assignments []domain.Assignment, metrics domain.Metrics, supervisorsMissing int) error {
	if cfg.Coverage.IsHard() && metrics.UnmetDemand > 0 {
		return fmt.Errorf("覆盖为硬约束，但仍有 %d 人次的需求未满足", metrics.UnmetDemand)
	}
	if cfg.SupervisorPresence.IsHard() && supervisorsMissing > 0 {
		return fmt.Errorf("主管在岗为硬约束，但有 %d 个班次没有主管", supervisorsMissing)
	}
	if cfg.OvertimeCapHours == nil {
		return nil
	}

	weeks := p.Horizon().CalendarWeeks()
	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		limit := cfg.threshold(emp.EmploymentClass) + *cfg.OvertimeCapHours
		for _, week := range weeks {
			if h := weekHours(p, assignments, emp.ID, week); h > limit+hoursTolerance {
				return fmt.Errorf("员工 %q 在 %s 所在的一周工作 %.1f 小时，超过加班上限", emp.ID, domain.FormatDate(p.Date(week[0])), h)
			}
		}
	}
	return nil
}

// ComputeMetrics 根据排班计算各项指标。求解结果和手动提交的排班都用它计算。
// 调用前排班应该已经通过 utils.ValidateSchedule 的检查。
func ComputeMetrics(p *domain.Problem, cfg Config, assignments []domain.Assignment) (domain.Metrics, error) {
	m, _, err := computeMetrics(p, cfg, assignments)
	return m, err
}

// computeMetrics 同时返回没有主管在岗的班次数量
func computeMetrics(p *domain.Problem, cfg Config, assignments []domain.Assignment) (domain.Metrics, int, error) {
	m := domain.Metrics{
		OvertimeByEmployee: make(map[string]float64, p.NumEmployees()),
		HoursByEmployee:    make(map[string]float64, p.NumEmployees()),
		Coverage:           make([]domain.CoverageEntry, 0),
	}

	daily := make([][]float64, p.NumEmployees())
	for e := range daily {
		daily[e] = make([]float64, p.NumDays())
	}
	worked := make(map[domain.SlotKey]bool, len(assignments))
	scheduled := make(map[string]bool)

	for _, a := range assignments {
		e, ok := p.EmployeeIndex(a.EmployeeID)
		if !ok {
			return domain.Metrics{}, 0, fmt.Errorf("员工 %q 不存在", a.EmployeeID)
		}
		d, ok := p.Horizon().Index(a.Date)
		if !ok {
			return domain.Metrics{}, 0, fmt.Errorf("日期 %s 不在规划周期内", domain.FormatDate(a.Date))
		}
		s, ok := p.ShiftIndex(a.Shift)
		if !ok {
			return domain.Metrics{}, 0, fmt.Errorf("班次 %q 不存在", a.Shift)
		}

		key := domain.SlotKey{Employee: e, Day: d, Shift: s}
		worked[key] = true
		scheduled[a.EmployeeID] = true

		emp := p.Employee(e)
		hours := p.Hours(d, s)
		daily[e][d] += hours
		m.TotalHours += hours
		m.TotalCost += hours * emp.HourlyWage

		if w, ok := p.Preference(key); ok {
			m.PreferenceMatches++
			m.PreferenceBonus += cfg.PreferenceBonus * w
		}
	}

	// 工时与加班
	weeks := p.Horizon().CalendarWeeks()
	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		threshold := cfg.threshold(emp.EmploymentClass)

		total, overtime := 0.0, 0.0
		for _, week := range weeks {
			hours := 0.0
			for _, d := range week {
				hours += daily[e][d]
			}
			total += hours
			overtime += math.Max(0, hours-threshold)
		}

		m.HoursByEmployee[emp.ID] = total
		m.OvertimeByEmployee[emp.ID] = overtime
		m.OvertimeHoursTotal += overtime
	}
	m.PenaltyCost += cfg.OvertimePenalty * m.OvertimeHoursTotal

	// 覆盖率
	requiredTotal, coveredTotal := 0, 0
	supervisorsMissing := 0
	for d := 0; d < p.NumDays(); d++ {
		for s := 0; s < p.NumShifts(); s++ {
			hasSupervisor := false
			for e := 0; e < p.NumEmployees(); e++ {
				if worked[domain.SlotKey{Employee: e, Day: d, Shift: s}] && p.Employee(e).Role == domain.RoleSupervisor {
					hasSupervisor = true
					break
				}
			}
			if totalDemand(p, d, s) > 0 && !hasSupervisor {
				supervisorsMissing++
			}

			for _, role := range domain.Roles {
				required := p.Demand(d, s, role)
				if required <= 0 {
					continue
				}

				assigned := 0
				for e := 0; e < p.NumEmployees(); e++ {
					if worked[domain.SlotKey{Employee: e, Day: d, Shift: s}] && p.Employee(e).Role == role {
						assigned++
					}
				}

				m.Coverage = append(m.Coverage, domain.CoverageEntry{
					Date:     p.Date(d),
					Shift:    p.Shift(s).Name,
					Role:     role,
					Required: required,
					Assigned: assigned,
					Ratio:    float64(assigned) / float64(required),
				})
				requiredTotal += required
				coveredTotal += min(assigned, required)
				m.UnmetDemand += max(0, required-assigned)
			}
		}
	}

	m.OverallCoverage = 1
	if requiredTotal > 0 {
		m.OverallCoverage = float64(coveredTotal) / float64(requiredTotal)
	}
	if !cfg.Coverage.IsHard() {
		m.PenaltyCost += cfg.Coverage.PenaltyWeight * float64(m.UnmetDemand)
	}
	if !cfg.SupervisorPresence.IsHard() && p.HasSupervisors() {
		m.PenaltyCost += cfg.SupervisorPresence.PenaltyWeight * float64(supervisorsMissing)
	}

	if p.NumDays() > 0 {
		m.AvgStaffPerDay = float64(len(assignments)) / float64(p.NumDays())
	}
	m.EmployeesScheduled = len(scheduled)
	m.Objective = m.TotalCost + m.PenaltyCost - m.PreferenceBonus

	if !p.HasSupervisors() {
		supervisorsMissing = 0
	}
	return m, supervisorsMissing, nil
}

func weekHours(p *domain.Problem, assignments []domain.Assignment, id string, week []int) float64 {
	inWeek := make(map[int]bool, len(week))
	for _, d := range week {
		inWeek[d] = true
	}

	total := 0.0
	for _, a := range assignments {
		if a.EmployeeID != id {
			continue
		}
		d, ok := p.Horizon().Index(a.Date)
		if !ok {
			continue
		}
		s, ok := p.ShiftIndex(a.Shift)
		if !inWeek[d] || !ok {
			continue
		}
		total += p.Hours(d, s)
	}
	return total
}
