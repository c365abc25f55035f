// Package scenario 在基准问题上施加扰动，重新求解并与基准排班比较。
package scenario

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

type Kind string

const (
	KindDemandMultiplier Kind = "demand_multiplier"
	KindAbsence          Kind = "absence"
	KindHeadcountDelta   Kind = "headcount_delta"
	KindHolidaySurge     Kind = "holiday_surge"
)

// Perturbation 对基准问题的一项修改，Kind 决定使用哪些字段
type Perturbation struct {
	Kind Kind `json:"kind"`

	// demand_multiplier, holiday_surge
	Factor float64 `json:"factor,omitempty"`
	// absence
	EmployeeIDs []string  `json:"employeeIDs,omitempty"`
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	// headcount_delta
	Role  domain.Role `json:"role,omitempty"`
	Delta int         `json:"delta,omitempty"`
	// holiday_surge
	Dates []time.Time `json:"dates,omitempty"`
}

func DemandMultiplier(factor float64) Perturbation {
	return Perturbation{Kind: KindDemandMultiplier, Factor: factor}
}

func Absence(from time.Time, to time.Time, employeeIDs ...string) Perturbation {
	return Perturbation{Kind: KindAbsence, EmployeeIDs: employeeIDs, From: from, To: to}
}

func HeadcountDelta(role domain.Role, delta int) Perturbation {
	return Perturbation{Kind: KindHeadcountDelta, Role: role, Delta: delta}
}

func HolidaySurge(factor float64, dates ...time.Time) Perturbation {
	return Perturbation{Kind: KindHolidaySurge, Factor: factor, Dates: dates}
}

// Scenario 一组按顺序施加的扰动
type Scenario struct {
	Name          string         `json:"name" validate:"required,max=100"`
	Perturbations []Perturbation `json:"perturbations" validate:"required,min=1"`
}

// Apply 在输入记录的副本上依次施加扰动，不会修改 in
func (sc Scenario) Apply(in domain.ProblemInput) (domain.ProblemInput, error) {
	out := in.Clone()
	for i, p := range sc.Perturbations {
		var err error
		out, err = p.apply(out)
		if err != nil {
			return domain.ProblemInput{}, &domain.ValidationError{Issues: []domain.ValidationIssue{
				{Field: fmt.Sprintf("perturbations[%d]", i), Message: err.Error()},
			}}
		}
	}
	return out, nil
}

func (p Perturbation) apply(in domain.ProblemInput) (domain.ProblemInput, error) {
	switch p.Kind {
	case KindDemandMultiplier:
		if err := checkFactor(p.Factor); err != nil {
			return in, err
		}
		return ScaleDemand(in, p.Factor), nil
	case KindHolidaySurge:
		if err := checkFactor(p.Factor); err != nil {
			return in, err
		}
		if len(p.Dates) == 0 {
			return in, fmt.Errorf("节假日扰动至少需要一个日期")
		}
		return scaleDemandOn(in, p.Factor, p.Dates), nil
	case KindAbsence:
		return applyAbsence(in, p.EmployeeIDs, p.From, p.To)
	case KindHeadcountDelta:
		return applyHeadcountDelta(in, p.Role, p.Delta)
	default:
		return in, fmt.Errorf("未知的扰动类型 %q", p.Kind)
	}
}

func checkFactor(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fmt.Errorf("倍数必须是非负数，当前为 %v", f)
	}
	return nil
}

func scaleRequired(required int, factor float64) int {
	return int(math.Ceil(float64(required)*factor - 1e-9))
}

// ScaleDemand 把所有需求乘以 factor 并向上取整
func ScaleDemand(in domain.ProblemInput, factor float64) domain.ProblemInput {
	out := in.Clone()
	for i := range out.Demand {
		out.Demand[i].RequiredHeadcount = scaleRequired(out.Demand[i].RequiredHeadcount, factor)
	}
	return out
}

func scaleDemandOn(in domain.ProblemInput, factor float64, dates []time.Time) domain.ProblemInput {
	surge := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		surge[domain.Day(d)] = true
	}

	out := in.Clone()
	for i, d := range out.Demand {
		if surge[domain.Day(d.Date)] {
			out.Demand[i].RequiredHeadcount = scaleRequired(d.RequiredHeadcount, factor)
		}
	}
	return out
}

// applyAbsence 把员工在 [from, to] 内的所有班次标记为不可用
func applyAbsence(in domain.ProblemInput, ids []string, from time.Time, to time.Time) (domain.ProblemInput, error) {
	if len(ids) == 0 {
		return in, fmt.Errorf("缺勤扰动至少需要一名员工")
	}
	from, to = domain.Day(from), domain.Day(to)
	if to.Before(from) {
		return in, fmt.Errorf("缺勤结束日期 %s 早于开始日期 %s", domain.FormatDate(to), domain.FormatDate(from))
	}

	known := make(map[string]bool, len(in.Employees))
	for _, e := range in.Employees {
		known[e.ID] = true
	}
	absent := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return in, fmt.Errorf("员工 %q 不存在", id)
		}
		absent[id] = true
	}

	out := in.Clone()

	// 先去掉原有的记录，再统一补上不可用的记录
	kept := out.Availability[:0]
	for _, slot := range out.Availability {
		d := domain.Day(slot.Date)
		if absent[slot.EmployeeID] && !d.Before(from) && !d.After(to) {
			continue
		}
		kept = append(kept, slot)
	}
	out.Availability = kept

	for _, id := range ids {
		for _, day := range out.Horizon.Days() {
			if day.Before(from) || day.After(to) {
				continue
			}
			for _, shift := range out.Shifts {
				out.Availability = append(out.Availability, domain.AvailabilitySlot{
					EmployeeID: id,
					Date:       day,
					Shift:      shift.Name,
					Available:  false,
				})
			}
		}
	}
	return out, nil
}

// applyHeadcountDelta delta > 0 时以该角色工资居中的员工为样本增加临时员工（连同其可用性），
// delta < 0 时按 ID 去掉该角色最后 |delta| 名员工
func applyHeadcountDelta(in domain.ProblemInput, role domain.Role, delta int) (domain.ProblemInput, error) {
	if !slices.Contains(domain.Roles, role) {
		return in, fmt.Errorf("未知的角色 %q", role)
	}

	out := in.Clone()
	members := make([]domain.Employee, 0)
	for _, e := range out.Employees {
		if e.Role == role {
			members = append(members, e)
		}
	}

	switch {
	case delta > 0:
		if len(members) == 0 {
			return in, fmt.Errorf("没有角色为 %q 的员工可以作为样本", role)
		}
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].HourlyWage != members[j].HourlyWage {
				return members[i].HourlyWage < members[j].HourlyWage
			}
			return members[i].ID < members[j].ID
		})
		rep := members[(len(members)-1)/2]

		taken := make(map[string]bool, len(out.Employees))
		for _, e := range out.Employees {
			taken[e.ID] = true
		}
		var repSlots []domain.AvailabilitySlot
		for _, slot := range out.Availability {
			if slot.EmployeeID == rep.ID {
				repSlots = append(repSlots, slot)
			}
		}

		for i, n := 0, 1; i < delta; n++ {
			id := fmt.Sprintf("%s-SYN%02d", rep.ID, n)
			if taken[id] {
				continue
			}
			taken[id] = true
			i++

			clone := rep
			clone.ID = id
			clone.Name = fmt.Sprintf("%s（临时 %d）", rep.Name, n)
			out.Employees = append(out.Employees, clone)
			for _, slot := range repSlots {
				slot.EmployeeID = id
				if slot.PreferenceWeight != nil {
					w := *slot.PreferenceWeight
					slot.PreferenceWeight = &w
				}
				out.Availability = append(out.Availability, slot)
			}
		}
	case delta < 0:
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		n := min(-delta, len(members))
		removed := make(map[string]bool, n)
		for _, e := range members[len(members)-n:] {
			removed[e.ID] = true
		}

		out.Employees = slices.DeleteFunc(out.Employees, func(e domain.Employee) bool { return removed[e.ID] })
		out.Availability = slices.DeleteFunc(out.Availability, func(s domain.AvailabilitySlot) bool { return removed[s.EmployeeID] })
	}

	return out, nil
}
