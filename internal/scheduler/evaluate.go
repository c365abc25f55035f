package scheduler

import (
	"sort"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

// Evaluate 为手动提交的排班补全角色和工时，检查必须满足的约束并计算指标。
// 覆盖和主管在岗不作为拒绝的条件，缺口体现在指标里。
func Evaluate(p *domain.Problem, cfg Config, assignments []domain.Assignment) (*domain.Schedule, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateSchedule(p, assignments); err != nil {
		return nil, err
	}

	resolved := make([]domain.Assignment, len(assignments))
	for i, a := range assignments {
		e, _ := p.EmployeeIndex(a.EmployeeID)
		d, _ := p.Horizon().Index(a.Date)
		s, _ := p.ShiftIndex(a.Shift)
		resolved[i] = domain.Assignment{
			EmployeeID: a.EmployeeID,
			Date:       p.Date(d),
			Shift:      a.Shift,
			Role:       p.Employee(e).Role,
			Hours:      p.Hours(d, s),
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		if !resolved[i].Date.Equal(resolved[j].Date) {
			return resolved[i].Date.Before(resolved[j].Date)
		}
		si, _ := p.ShiftIndex(resolved[i].Shift)
		sj, _ := p.ShiftIndex(resolved[j].Shift)
		if si != sj {
			return si < sj
		}
		return resolved[i].EmployeeID < resolved[j].EmployeeID
	})

	metrics, err := ComputeMetrics(p, cfg, resolved)
	if err != nil {
		return nil, err
	}
	fingerprint, err := Fingerprint(p, cfg)
	if err != nil {
		return nil, err
	}

	return &domain.Schedule{
		Status:      domain.StatusFeasible,
		Assignments: resolved,
		Metrics:     metrics,
		Relaxed:     []domain.ConstraintFamily{},
		Fingerprint: fingerprint,
	}, nil
}
