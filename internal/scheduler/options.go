package scheduler

import "time"

// Options 单次求解时覆盖默认配置的参数，未设置的字段保持默认值
type Options struct {
	CoverageMode      *ModeKind `json:"coverageMode" validate:"omitempty,oneof=hard soft"`
	CoveragePenalty   *float64  `json:"coveragePenalty" validate:"omitempty,gte=0"`
	SupervisorMode    *ModeKind `json:"supervisorMode" validate:"omitempty,oneof=hard soft"`
	SupervisorPenalty *float64  `json:"supervisorPenalty" validate:"omitempty,gte=0"`
	Relaxation        *bool     `json:"relaxation"`
	OvertimePenalty   *float64  `json:"overtimePenalty" validate:"omitempty,gte=0"`
	PreferenceBonus   *float64  `json:"preferenceBonus" validate:"omitempty,gte=0"`
	OvertimeCapHours  *float64  `json:"overtimeCapHours" validate:"omitempty,gte=0"`
	TimeBudget        *int      `json:"timeBudget" validate:"omitempty,gte=1,lte=3600"` // 秒
	RelativeGap       *float64  `json:"relativeGap" validate:"omitempty,gte=0,lte=1"`
	Seed              *int64    `json:"seed"`
	Workers           *int      `json:"workers" validate:"omitempty,gte=1,lte=64"`

	PopulationSize *int32   `json:"populationSize" validate:"omitempty,gte=1"`
	MaxGenerations *int32   `json:"maxGenerations" validate:"omitempty,gte=1"`
	// 求解器把 0 视为未设置，因此这里不接受 0
	CrossoverRate  *float64 `json:"crossoverRate" validate:"omitempty,gt=0,lte=1"`
	MutationRate   *float64 `json:"mutationRate" validate:"omitempty,gt=0,lte=1"`
	EliteCount     *int32   `json:"eliteCount" validate:"omitempty,gte=1"`

	// DemandMultiplier 在求解前把所有需求人数乘以该系数（向上取整），不参与 Config
	DemandMultiplier *float64 `json:"demandMultiplier" validate:"omitempty,gt=0"`
}

// Apply 返回覆盖后的配置，base 不会被修改
func (o Options) Apply(base Config) Config {
	cfg := base

	if o.CoveragePenalty != nil {
		cfg.CoverageRelaxWeight = *o.CoveragePenalty
		if !cfg.Coverage.IsHard() {
			cfg.Coverage.PenaltyWeight = *o.CoveragePenalty
		}
	}
	if o.CoverageMode != nil {
		cfg.Coverage = ConstraintMode{Kind: *o.CoverageMode}
		if !cfg.Coverage.IsHard() {
			cfg.Coverage.PenaltyWeight = cfg.CoverageRelaxWeight
		}
	}
	if o.SupervisorPenalty != nil {
		cfg.SupervisorRelaxWeight = *o.SupervisorPenalty
		if !cfg.SupervisorPresence.IsHard() {
			cfg.SupervisorPresence.PenaltyWeight = *o.SupervisorPenalty
		}
	}
	if o.SupervisorMode != nil {
		cfg.SupervisorPresence = ConstraintMode{Kind: *o.SupervisorMode}
		if !cfg.SupervisorPresence.IsHard() {
			cfg.SupervisorPresence.PenaltyWeight = cfg.SupervisorRelaxWeight
		}
	}

	if o.Relaxation != nil {
		cfg.Relaxation = *o.Relaxation
	}
	if o.OvertimePenalty != nil {
		cfg.OvertimePenalty = *o.OvertimePenalty
	}
	if o.PreferenceBonus != nil {
		cfg.PreferenceBonus = *o.PreferenceBonus
	}
	if o.OvertimeCapHours != nil {
		v := *o.OvertimeCapHours
		cfg.OvertimeCapHours = &v
	}
	if o.TimeBudget != nil {
		cfg.TimeBudget = time.Duration(*o.TimeBudget) * time.Second
	}
	if o.RelativeGap != nil {
		cfg.RelativeGap = *o.RelativeGap
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.Workers != nil {
		cfg.Workers = *o.Workers
	}

	if o.PopulationSize != nil {
		cfg.Heuristic.PopulationSize = *o.PopulationSize
	}
	if o.MaxGenerations != nil {
		cfg.Heuristic.MaxGenerations = *o.MaxGenerations
	}
	if o.CrossoverRate != nil {
		cfg.Heuristic.CrossoverRate = *o.CrossoverRate
	}
	if o.MutationRate != nil {
		cfg.Heuristic.MutationRate = *o.MutationRate
	}
	if o.EliteCount != nil {
		cfg.Heuristic.EliteCount = *o.EliteCount
	}

	return cfg
}
