package scenario

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// RequirementDelta 某条需求在基准和场景下的覆盖率，没有该需求的一方覆盖率记为 1
type RequirementDelta struct {
	Date     time.Time   `json:"date"`
	Shift    string      `json:"shift"`
	Role     domain.Role `json:"role"`
	Baseline float64     `json:"baseline"`
	Scenario float64     `json:"scenario"`
	Delta    float64     `json:"delta"`
}

// Delta 场景减去基准
type Delta struct {
	Cost                  float64            `json:"cost"`
	Hours                 float64            `json:"hours"`
	Overtime              float64            `json:"overtime"`
	Coverage              float64            `json:"coverage"`
	CoverageByRequirement []RequirementDelta `json:"coverageByRequirement"`
}

type Comparison struct {
	Scenario Scenario         `json:"scenario"`
	Schedule *domain.Schedule `json:"schedule"`
	Delta    Delta            `json:"delta"`
}

type Report struct {
	RunID       string           `json:"runID"`
	Baseline    *domain.Schedule `json:"baseline"`
	Comparisons []Comparison     `json:"comparisons"`
}

type Engine struct {
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
	parallelism int
}

// NewEngine parallelism 为同时求解的场景数，小于 1 时按 1 处理
func NewEngine(s *scheduler.Scheduler, logger *slog.Logger, parallelism int) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{scheduler: s, logger: logger, parallelism: parallelism}
}

// RunAll 求解基准（通常直接命中缓存）后并发求解所有场景。
// 场景无解时仍然返回其结果（状态为 Infeasible），只有校验失败或求解器故障才会中止。
func (e *Engine) RunAll(ctx context.Context, baseline *domain.Problem, cfg scheduler.Config, scenarios []Scenario) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		Comparisons: make([]Comparison, len(scenarios)),
	}
	logger := e.logger.With(slog.String("runID", report.RunID))

	// 先校验所有场景，避免求解到一半才发现输入错误
	problems := make([]*domain.Problem, len(scenarios))
	for i, sc := range scenarios {
		in, err := sc.Apply(baseline.Input())
		if err != nil {
			return nil, err
		}
		p, err := domain.NewProblem(in)
		if err != nil {
			return nil, err
		}
		problems[i] = p
	}

	base, err := e.scheduler.Schedule(ctx, baseline, cfg)
	if err != nil && !isInfeasible(err) {
		return nil, err
	}
	report.Baseline = base

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			logger.Info("开始求解场景", slog.String("scenario", sc.Name))

			schedule, err := e.scheduler.Schedule(gctx, problems[i], cfg)
			if err != nil && !isInfeasible(err) {
				return err
			}

			report.Comparisons[i] = Comparison{
				Scenario: sc,
				Schedule: schedule,
				Delta:    Compare(base, schedule),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("场景求解失败", slog.String("error", err.Error()))
		return nil, err
	}

	return report, nil
}

// Run 求解单个场景
func (e *Engine) Run(ctx context.Context, baseline *domain.Problem, cfg scheduler.Config, sc Scenario) (*Comparison, *domain.Schedule, error) {
	report, err := e.RunAll(ctx, baseline, cfg, []Scenario{sc})
	if err != nil {
		return nil, nil, err
	}
	return &report.Comparisons[0], report.Baseline, nil
}

func isInfeasible(err error) bool {
	var infeasible *scheduler.InfeasibleModelError
	return errors.As(err, &infeasible)
}

type requirementKey struct {
	date  time.Time
	shift string
	role  domain.Role
}

// Compare 计算场景相对于基准的变化，不会修改任何一方
func Compare(base *domain.Schedule, sc *domain.Schedule) Delta {
	d := Delta{
		Cost:                  sc.Metrics.TotalCost - base.Metrics.TotalCost,
		Hours:                 sc.Metrics.TotalHours - base.Metrics.TotalHours,
		Overtime:              sc.Metrics.OvertimeHoursTotal - base.Metrics.OvertimeHoursTotal,
		Coverage:              sc.Metrics.OverallCoverage - base.Metrics.OverallCoverage,
		CoverageByRequirement: make([]RequirementDelta, 0),
	}

	entries := make(map[requirementKey]*RequirementDelta)
	get := func(c domain.CoverageEntry) *RequirementDelta {
		key := requirementKey{date: c.Date, shift: c.Shift, role: c.Role}
		if rd, ok := entries[key]; ok {
			return rd
		}
		rd := &RequirementDelta{Date: c.Date, Shift: c.Shift, Role: c.Role, Baseline: 1, Scenario: 1}
		entries[key] = rd
		return rd
	}
	for _, c := range base.Metrics.Coverage {
		get(c).Baseline = c.Ratio
	}
	for _, c := range sc.Metrics.Coverage {
		get(c).Scenario = c.Ratio
	}

	for _, rd := range entries {
		rd.Delta = rd.Scenario - rd.Baseline
		d.CoverageByRequirement = append(d.CoverageByRequirement, *rd)
	}
	sort.Slice(d.CoverageByRequirement, func(i, j int) bool {
		a, b := d.CoverageByRequirement[i], d.CoverageByRequirement[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Shift != b.Shift {
			return a.Shift < b.Shift
		}
		return a.Role < b.Role
	})
	return d
}
