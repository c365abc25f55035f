package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/solver"
)

const hoursTolerance = 1e-9

type variable struct {
	key   domain.SlotKey
	hours float64
}

// builtModel 求解模型以及变量与 (员工, 日期, 班次) 的对应关系
type builtModel struct {
	model *solver.Model
	vars  []variable
	index map[domain.SlotKey]int
}

// buildModel 把问题转换为 0-1 规划模型。
// 只为可排的 (员工, 日期, 班次) 创建变量，因此可用性约束由模型结构保证，不再单独建约束。
func buildModel(p *domain.Problem, cfg Config, logger *slog.Logger) *builtModel {
	b := &builtModel{
		model: solver.NewModel(),
		index: make(map[domain.SlotKey]int),
	}

	// 变量按员工优先的顺序排列，交叉时交换的是员工的整段排班
	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		for d := 0; d < p.NumDays(); d++ {
			for s := 0; s < p.NumShifts(); s++ {
				key := domain.SlotKey{Employee: e, Day: d, Shift: s}
				if !p.Eligible(key) {
					continue
				}

				hours := p.Hours(d, s)
				cost := hours * emp.HourlyWage
				if w, ok := p.Preference(key); ok {
					cost -= cfg.PreferenceBonus * w
				}

				name := fmt.Sprintf("x[%s,%s,%s]", emp.ID, domain.FormatDate(p.Date(d)), p.Shift(s).Name)
				b.index[key] = b.model.AddVar(name, cost)
				b.vars = append(b.vars, variable{key: key, hours: hours})
			}
		}
	}

	b.addCoverage(p, cfg.Coverage.rule())
	b.addSupervisorPresence(p, cfg.SupervisorPresence.rule(), logger)
	b.addOneShiftPerDay(p)
	b.addWeeklyHoursCap(p)
	b.addOvertime(p, cfg)

	logger.Debug("模型构建完成",
		"vars", b.model.NumVars(),
		"constraints", b.model.NumConstraints(),
		"penalties", b.model.NumPenalties(),
	)

	return b
}

// staffTerms 某天某班次中满足条件的员工对应的变量
func (b *builtModel) staffTerms(p *domain.Problem, d int, s int, match func(domain.Employee) bool) []solver.Term {
	var terms []solver.Term
	for e := 0; e < p.NumEmployees(); e++ {
		if !match(p.Employee(e)) {
			continue
		}
		if v, ok := b.index[domain.SlotKey{Employee: e, Day: d, Shift: s}]; ok {
			terms = append(terms, solver.Term{Var: v, Coef: 1})
		}
	}
	return terms
}

// hoursTerms 某员工在若干天内的所有变量，系数为班次时长
func (b *builtModel) hoursTerms(p *domain.Problem, e int, days []int) ([]solver.Term, float64) {
	var terms []solver.Term
	total := 0.0
	for _, d := range days {
		for s := 0; s < p.NumShifts(); s++ {
			if v, ok := b.index[domain.SlotKey{Employee: e, Day: d, Shift: s}]; ok {
				terms = append(terms, solver.Term{Var: v, Coef: b.vars[v].hours})
				total += b.vars[v].hours
			}
		}
	}
	return terms, total
}

func (b *builtModel) slotName(p *domain.Problem, family domain.ConstraintFamily, d int, s int, extra string) string {
	name := fmt.Sprintf("%s[%s/%s", family, domain.FormatDate(p.Date(d)), p.Shift(s).Name)
	if extra != "" {
		name += "/" + extra
	}
	return name + "]"
}

// 1. 每天每班次每个角色的人数需求
func (b *builtModel) addCoverage(p *domain.Problem, r rule) {
	for d := 0; d < p.NumDays(); d++ {
		for s := 0; s < p.NumShifts(); s++ {
			for _, role := range domain.Roles {
				required := p.Demand(d, s, role)
				if required <= 0 {
					continue
				}
				terms := b.staffTerms(p, d, s, func(e domain.Employee) bool { return e.Role == role })
				r.atLeast(b.model, b.slotName(p, domain.FamilyCoverage, d, s, string(role)), terms, float64(required))
			}
		}
	}
}

// 2. 有需求的班次至少要有一名主管；名单中没有主管时该约束自动满足
func (b *builtModel) addSupervisorPresence(p *domain.Problem, r rule, logger *slog.Logger) {
	if !p.HasSupervisors() {
		logger.Warn("名单中没有主管，主管在岗约束视为满足")
		return
	}

	for d := 0; d < p.NumDays(); d++ {
		for s := 0; s < p.NumShifts(); s++ {
			if totalDemand(p, d, s) <= 0 {
				continue
			}
			terms := b.staffTerms(p, d, s, func(e domain.Employee) bool { return e.Role == domain.RoleSupervisor })
			r.atLeast(b.model, b.slotName(p, domain.FamilySupervisor, d, s, ""), terms, 1)
		}
	}
}

// 3. 每人每天最多一个班次
func (b *builtModel) addOneShiftPerDay(p *domain.Problem) {
	for e := 0; e < p.NumEmployees(); e++ {
		for d := 0; d < p.NumDays(); d++ {
			var terms []solver.Term
			for s := 0; s < p.NumShifts(); s++ {
				if v, ok := b.index[domain.SlotKey{Employee: e, Day: d, Shift: s}]; ok {
					terms = append(terms, solver.Term{Var: v, Coef: 1})
				}
			}
			if len(terms) < 2 {
				continue
			}
			name := fmt.Sprintf("%s[%s/%s]", domain.FamilyOneShiftPerDay, p.Employee(e).ID, domain.FormatDate(p.Date(d)))
			b.model.AddConstraint(name, terms, solver.LessEqual, 1)
		}
	}
}

// 4. 任意连续 7 天内的工时不超过上限
func (b *builtModel) addWeeklyHoursCap(p *domain.Problem) {
	windows := domain.RollingWindows(p.NumDays())
	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		limit := float64(emp.WeeklyHoursCap)

		for _, w := range windows {
			terms, total := b.hoursTerms(p, e, dayRange(w[0], w[1]))
			if total <= limit+hoursTolerance {
				// 全部排满也不会超过上限
				continue
			}
			name := fmt.Sprintf("%s[%s/%s]", domain.FamilyWeeklyHoursCap, emp.ID, domain.FormatDate(p.Date(w[0])))
			b.model.AddConstraint(name, terms, solver.LessEqual, limit)
		}
	}
}

// 加班：按自然周统计，超出阈值的部分计入惩罚；配置了加班上限时同时作为硬约束
func (b *builtModel) addOvertime(p *domain.Problem, cfg Config) {
	weeks := p.Horizon().CalendarWeeks()
	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		threshold := cfg.threshold(emp.EmploymentClass)

		for _, week := range weeks {
			terms, total := b.hoursTerms(p, e, week)
			if total <= threshold+hoursTolerance {
				continue
			}

			suffix := fmt.Sprintf("[%s/%s]", emp.ID, domain.FormatDate(p.Date(week[0])))
			if cfg.OvertimeCapHours != nil && total > threshold+*cfg.OvertimeCapHours+hoursTolerance {
				b.model.AddConstraint(string(domain.FamilyOvertimeCap)+suffix, terms, solver.LessEqual, threshold+*cfg.OvertimeCapHours)
			}
			if cfg.OvertimePenalty > 0 {
				b.model.AddPenalty("overtime"+suffix, terms, threshold, cfg.OvertimePenalty)
			}
		}
	}
}

func totalDemand(p *domain.Problem, d int, s int) int {
	total := 0
	for _, role := range domain.Roles {
		total += p.Demand(d, s, role)
	}
	return total
}

func dayRange(from int, to int) []int {
	days := make([]int, 0, to-from)
	for d := from; d < to; d++ {
		days = append(days, d)
	}
	return days
}
