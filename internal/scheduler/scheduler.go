// Package scheduler 把排班问题建模为 0-1 规划并求解，负责松弛、缓存以及结果提取。
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/solver"
)

type Scheduler struct {
	cache  cache.Cache
	logger *slog.Logger
}

// New c 为 nil 时不缓存结果
func New(c cache.Cache, logger *slog.Logger) *Scheduler {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cache: c, logger: logger}
}

// attempt 一次建模、求解、提取的结果
type attempt struct {
	status      domain.SolveStatus
	assignments []domain.Assignment
	metrics     domain.Metrics
	info        domain.SolveInfo
}

// Schedule 求解排班。
//
// 硬约束无法满足且开启了松弛时，依次把主管在岗、覆盖转为软约束重新求解，
// 成功后结果状态为 Feasible 并在 Relaxed 中列出被松弛的约束族；
// 松弛后仍无解时同时返回状态为 Infeasible 的结果和 *InfeasibleModelError。
// ctx 被取消时返回已经找到的最好结果，状态为 Feasible。
func (s *Scheduler) Schedule(ctx context.Context, p *domain.Problem, cfg Config) (*domain.Schedule, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	key, err := Fingerprint(p, cfg)
	if err != nil {
		return nil, &InternalSolverError{Err: err}
	}

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("读取求解缓存失败", slog.String("fingerprint", key), slog.String("error", err.Error()))
	}
	if err == nil && ok {
		s.logger.Debug("命中求解缓存", slog.String("fingerprint", key))
		cached.SolveInfo.CacheHit = true
		return cached, nil
	}

	s.logger.Info("开始求解排班",
		slog.String("problem", p.String()),
		slog.String("fingerprint", key),
	)

	result, err := s.solve(ctx, p, cfg)
	if err != nil {
		return nil, err
	}

	schedule := &domain.Schedule{
		Status:      result.status,
		Assignments: result.assignments,
		Metrics:     result.metrics,
		Relaxed:     make([]domain.ConstraintFamily, 0),
		Fingerprint: key,
		SolveInfo:   result.info,
	}

	if result.status == domain.StatusInfeasible {
		var relaxErr error
		schedule, relaxErr = s.relax(ctx, p, cfg, schedule)
		if relaxErr != nil {
			if schedule != nil {
				sanitizeSolveInfo(&schedule.SolveInfo)
			}
			return schedule, relaxErr
		}
	}

	sanitizeSolveInfo(&schedule.SolveInfo)

	s.logger.Info("排班求解结束",
		slog.String("status", string(schedule.Status)),
		slog.Float64("objective", schedule.Metrics.Objective),
		slog.Int("assignments", len(schedule.Assignments)),
		slog.Duration("duration", schedule.SolveInfo.WallTime),
	)

	if schedule.Status.HasSolution() && !schedule.SolveInfo.Cancelled {
		if err := s.cache.Put(ctx, key, schedule); err != nil {
			s.logger.Warn("写入求解缓存失败", slog.String("fingerprint", key), slog.String("error", err.Error()))
		}
	}

	return schedule, nil
}

// relax 依次松弛主管在岗和覆盖约束，每次松弛都是累积的
func (s *Scheduler) relax(ctx context.Context, p *domain.Problem, cfg Config, infeasible *domain.Schedule) (*domain.Schedule, error) {
	if !cfg.Relaxation {
		return infeasible, &InfeasibleModelError{}
	}

	relaxed := cfg
	attempted := make([]domain.ConstraintFamily, 0, 2)
	info := infeasible.SolveInfo

	steps := []struct {
		family domain.ConstraintFamily
		hard   bool
		apply  func(c *Config)
	}{
		{domain.FamilySupervisor, cfg.SupervisorPresence.IsHard(), func(c *Config) {
			c.SupervisorPresence = Soft(c.SupervisorRelaxWeight)
		}},
		{domain.FamilyCoverage, cfg.Coverage.IsHard(), func(c *Config) {
			c.Coverage = Soft(c.CoverageRelaxWeight)
		}},
	}

	for _, step := range steps {
		if !step.hard {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		step.apply(&relaxed)
		attempted = append(attempted, step.family)
		s.logger.Info("硬约束无法满足，尝试松弛", slog.String("family", string(step.family)))

		result, err := s.solve(ctx, p, relaxed)
		if err != nil {
			return nil, err
		}
		info.WallTime += result.info.WallTime
		info.Nodes += result.info.Nodes
		info.BestBound = result.info.BestBound
		info.Gap = result.info.Gap
		info.Cancelled = result.info.Cancelled

		if result.status.HasSolution() {
			// 状态是相对于原始的硬约束模型而言的，因此松弛后不会是 Optimal
			out := infeasible.Clone()
			out.Status = domain.StatusFeasible
			out.Assignments = result.assignments
			out.Metrics = result.metrics
			out.Relaxed = slices.Clone(attempted)
			out.SolveInfo = info
			return out, nil
		}
		if result.status == domain.StatusTimedOutNoSolution {
			out := infeasible.Clone()
			out.Status = domain.StatusTimedOutNoSolution
			out.SolveInfo = info
			sanitizeSolveInfo(&out.SolveInfo)
			return out, nil
		}
	}

	out := infeasible.Clone()
	out.SolveInfo = info
	sanitizeSolveInfo(&out.SolveInfo)
	return out, &InfeasibleModelError{Attempted: attempted}
}

// solve 建模、求解并提取一次结果
func (s *Scheduler) solve(ctx context.Context, p *domain.Problem, cfg Config) (*attempt, error) {
	b := buildModel(p, cfg, s.logger)

	opts := cfg.solverOptions()
	opts.Logger = s.logger
	sol, err := solver.Solve(ctx, b.model, opts)
	if err != nil {
		var panicErr *solver.PanicError
		if errors.As(err, &panicErr) {
			s.logger.Error("求解器发生 panic", slog.Any("value", panicErr.Value), slog.String("stack", string(panicErr.Stack)))
		} else {
			s.logger.Error("求解失败", slog.String("error", err.Error()))
		}
		return nil, &InternalSolverError{Err: err}
	}

	result := &attempt{
		assignments: make([]domain.Assignment, 0),
		info: domain.SolveInfo{
			WallTime:  sol.WallTime,
			Nodes:     sol.Nodes,
			BestBound: sol.BestBound,
			Gap:       sol.Gap,
			Cancelled: sol.Cancelled,
		},
	}

	switch sol.Status {
	case solver.StatusOptimal:
		result.status = domain.StatusOptimal
	case solver.StatusFeasible:
		result.status = domain.StatusFeasible
	case solver.StatusInfeasible:
		result.status = domain.StatusInfeasible
	default:
		result.status = domain.StatusTimedOutNoSolution
	}

	if !result.status.HasSolution() {
		result.metrics = emptyMetrics()
		return result, nil
	}

	assignments, metrics, err := extract(p, cfg, b, sol)
	if err != nil {
		s.logger.Error("求解结果没有通过校验", slog.String("error", err.Error()))
		return nil, &InternalSolverError{Err: err}
	}
	result.assignments = assignments
	result.metrics = metrics
	return result, nil
}

func emptyMetrics() domain.Metrics {
	return domain.Metrics{
		OvertimeByEmployee: make(map[string]float64),
		HoursByEmployee:    make(map[string]float64),
		Coverage:           make([]domain.CoverageEntry, 0),
	}
}

// sanitizeSolveInfo JSON 无法表示 Inf 和 NaN
func sanitizeSolveInfo(info *domain.SolveInfo) {
	if math.IsInf(info.BestBound, 0) || math.IsNaN(info.BestBound) {
		info.BestBound = 0
	}
	if math.IsInf(info.Gap, 0) || math.IsNaN(info.Gap) {
		info.Gap = 0
	}
}
