package scheduler

import (
	"math"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/solver"
)

type ModeKind string

const (
	ModeHard ModeKind = "hard"
	ModeSoft ModeKind = "soft"
)

// ConstraintMode 一个约束族是硬约束还是带惩罚的软约束
type ConstraintMode struct {
	Kind          ModeKind `json:"kind"`
	PenaltyWeight float64  `json:"penaltyWeight"`
}

func Hard() ConstraintMode {
	return ConstraintMode{Kind: ModeHard}
}

func Soft(weight float64) ConstraintMode {
	return ConstraintMode{Kind: ModeSoft, PenaltyWeight: weight}
}

func (c ConstraintMode) IsHard() bool {
	return c.Kind == ModeHard
}

// Config 一次求解的全部配置，所有字段都参与指纹计算
type Config struct {
	Coverage           ConstraintMode `json:"coverage"`
	SupervisorPresence ConstraintMode `json:"supervisorPresence"`
	// 诊断性松弛时把硬约束转成软约束所用的权重
	CoverageRelaxWeight   float64 `json:"coverageRelaxWeight"`
	SupervisorRelaxWeight float64 `json:"supervisorRelaxWeight"`
	Relaxation            bool    `json:"relaxation"`

	OvertimePenalty   float64  `json:"overtimePenalty"`
	PreferenceBonus   float64  `json:"preferenceBonus"`
	FullTimeThreshold float64  `json:"fullTimeThreshold"`
	PartTimeThreshold float64  `json:"partTimeThreshold"`
	OvertimeCapHours  *float64 `json:"overtimeCapHours,omitempty"` // nil 表示不限制加班时长

	TimeBudget  time.Duration              `json:"timeBudget"`
	RelativeGap float64                    `json:"relativeGap"`
	Seed        int64                      `json:"seed"`
	Workers     int                        `json:"workers"`
	Heuristic   solver.HeuristicParameters `json:"heuristic"`
}

// DefaultConfig 默认配置。这些默认值是稳定的，修改它们会改变已有的求解结果。
func DefaultConfig() Config {
	return Config{
		Coverage:              Soft(500),
		SupervisorPresence:    Hard(),
		CoverageRelaxWeight:   500,
		SupervisorRelaxWeight: 1000,
		Relaxation:            true,

		OvertimePenalty:   10,
		PreferenceBonus:   5,
		FullTimeThreshold: 40,
		PartTimeThreshold: 30,

		TimeBudget:  30 * time.Second,
		RelativeGap: 0,
		Seed:        1,
		Workers:     1,
		Heuristic: solver.HeuristicParameters{
			PopulationSize: 20,
			MaxGenerations: 30,
			CrossoverRate:  0.8,
			MutationRate:   0.01,
			EliteCount:     2,
		},
	}
}

func (c Config) validate() error {
	verr := &domain.ValidationError{}
	bad := func(v float64) bool {
		return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
	}

	for _, m := range []struct {
		name string
		mode ConstraintMode
	}{{"coverage", c.Coverage}, {"supervisorPresence", c.SupervisorPresence}} {
		switch m.mode.Kind {
		case ModeHard:
		case ModeSoft:
			if bad(m.mode.PenaltyWeight) {
				verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: m.name, Message: "惩罚权重必须是非负数"})
			}
		default:
			verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: m.name, Message: "约束模式只能是 hard 或 soft"})
		}
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"coverageRelaxWeight", c.CoverageRelaxWeight},
		{"supervisorRelaxWeight", c.SupervisorRelaxWeight},
		{"overtimePenalty", c.OvertimePenalty},
		{"preferenceBonus", c.PreferenceBonus},
		{"fullTimeThreshold", c.FullTimeThreshold},
		{"partTimeThreshold", c.PartTimeThreshold},
		{"relativeGap", c.RelativeGap},
	} {
		if bad(w.value) {
			verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: w.name, Message: "必须是非负数"})
		}
	}

	if c.OvertimeCapHours != nil && bad(*c.OvertimeCapHours) {
		verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: "overtimeCapHours", Message: "必须是非负数"})
	}
	if c.TimeBudget < 0 {
		verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: "timeBudget", Message: "不能为负"})
	}
	if c.Workers < 0 {
		verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: "workers", Message: "不能为负"})
	}

	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}

func (c Config) threshold(class domain.EmploymentClass) float64 {
	if class == domain.EmploymentPartTime {
		return c.PartTimeThreshold
	}
	return c.FullTimeThreshold
}

func (c Config) solverOptions() solver.Options {
	return solver.Options{
		TimeLimit:   c.TimeBudget,
		RelativeGap: c.RelativeGap,
		Seed:        c.Seed,
		Workers:     c.Workers,
		Heuristic:   c.Heuristic,
	}
}

// rule 约束族的建模策略，在建模时按配置选定一次
type rule interface {
	// atLeast 要求 sum(terms) >= required
	atLeast(m *solver.Model, name string, terms []solver.Term, required float64)
}

type hardRule struct{}

func (hardRule) atLeast(m *solver.Model, name string, terms []solver.Term, required float64) {
	m.AddConstraint(name, terms, solver.GreaterEqual, required)
}

// softRule: weight * max(0, required - sum(terms))
type softRule struct {
	weight float64
}

func (r softRule) atLeast(m *solver.Model, name string, terms []solver.Term, required float64) {
	negated := make([]solver.Term, len(terms))
	for i, t := range terms {
		negated[i] = solver.Term{Var: t.Var, Coef: -t.Coef}
	}
	m.AddPenalty(name, negated, -required, r.weight)
}

func (c ConstraintMode) rule() rule {
	if c.IsHard() {
		return hardRule{}
	}
	return softRule{weight: c.PenaltyWeight}
}
