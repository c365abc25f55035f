// Package solver 实现了一个通用的 0-1 整数规划求解器：
// 深度优先分支定界 + 约束传播，并用遗传算法提供初始可行解。
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	feasibilityTolerance = 1e-6
	objectiveTolerance   = 1e-9
)

type Status int

const (
	// 搜索树已穷尽（或已达到目标间隙），当前解为最优解
	StatusOptimal Status = iota
	// 在时间预算内找到了可行解，但没有证明最优
	StatusFeasible
	// 不存在满足所有硬约束的解
	StatusInfeasible
	// 时间预算耗尽且没有找到任何可行解
	StatusNoSolution
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusFeasible:
		return "Feasible"
	case StatusInfeasible:
		return "Infeasible"
	case StatusNoSolution:
		return "NoSolution"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Options struct {
	TimeLimit   time.Duration
	RelativeGap float64 // 目标值与下界之间允许的相对间隙
	Seed        int64
	Workers     int // >1 时额外启动 Workers-1 个并行的启发式搜索
	Heuristic   HeuristicParameters
	Logger      *slog.Logger
}

type Solution struct {
	Status    Status
	Values    []bool
	Objective float64
	BestBound float64 // 根节点下界
	Gap       float64
	Nodes     int64
	WallTime  time.Duration
	Cancelled bool // 调用方主动取消
}

// ErrInvalidModel 模型本身不合法（与可行性无关）
var ErrInvalidModel = errors.New("模型不合法")

// PanicError 求解过程中发生 panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("求解器发生 panic: %v", e.Value)
}

// incumbent 当前最好的可行解，在分支定界和并行启发式之间共享
type incumbent struct {
	mu     sync.Mutex
	values []bool
	has    bool
	bits   atomic.Uint64 // math.Float64bits(objective)
}

func newIncumbent() *incumbent {
	inc := &incumbent{}
	inc.bits.Store(math.Float64bits(math.Inf(1)))
	return inc
}

func (inc *incumbent) objective() float64 {
	return math.Float64frombits(inc.bits.Load())
}

// offer 尝试用新解替换当前解，只有严格更好时才会替换
func (inc *incumbent) offer(values []bool, objective float64) bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	if inc.has && objective >= inc.objective()-objectiveTolerance*math.Max(1, math.Abs(objective)) {
		return false
	}

	inc.values = append(inc.values[:0], values...)
	inc.has = true
	inc.bits.Store(math.Float64bits(objective))
	return true
}

func (inc *incumbent) snapshot() ([]bool, float64, bool) {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	if !inc.has {
		return nil, math.Inf(1), false
	}
	return append([]bool(nil), inc.values...), inc.objective(), true
}

// Solve 在时间预算内求解模型。ctx 被取消时返回当前最好的可行解。
func Solve(ctx context.Context, m *Model, opts Options) (sol *Solution, err error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	defer func() {
		if r := recover(); r != nil {
			sol = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	opts.Heuristic = opts.Heuristic.withDefaults()

	start := time.Now()
	deadline := time.Time{}
	if opts.TimeLimit > 0 {
		deadline = start.Add(opts.TimeLimit)
	}

	inc := newIncumbent()
	s := newSearch(ctx, m, inc, deadline, opts.RelativeGap)

	if !s.initialize() {
		// 根节点传播就已经冲突
		logger.Debug("根节点传播发现冲突，模型不可行", "vars", m.NumVars(), "constraints", m.NumConstraints())
		return &Solution{
			Status:    StatusInfeasible,
			BestBound: math.Inf(1),
			WallTime:  time.Since(start),
		}, nil
	}

	// 先用遗传算法得到一个初始可行解，便于剪枝
	seedGA := newGenetic(m, opts.Heuristic, opts.Seed)
	if values, objective, ok := seedGA.run(ctx, deadline); ok {
		inc.offer(values, objective)
	}

	searchCtx, stopHelpers := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(searchCtx)
	for w := 1; w < opts.Workers; w++ {
		worker := newGenetic(m, opts.Heuristic, opts.Seed+int64(w))
		g.Go(func() error {
			return runHelper(gctx, worker, deadline, inc)
		})
	}

	s.run()
	stopHelpers()
	if err := g.Wait(); err != nil {
		return nil, err
	}

	values, objective, ok := inc.snapshot()
	sol = &Solution{
		Values:    values,
		Objective: objective,
		BestBound: s.bestBound,
		Nodes:     s.nodes,
		WallTime:  time.Since(start),
		Cancelled: ctx.Err() != nil,
	}

	switch {
	case !ok && s.exhausted:
		sol.Status = StatusInfeasible
	case !ok:
		sol.Status = StatusNoSolution
	case s.exhausted || s.gapReached:
		sol.Status = StatusOptimal
	default:
		sol.Status = StatusFeasible
	}

	if ok {
		if sol.Status == StatusOptimal && s.exhausted {
			sol.BestBound = objective
		}
		sol.Gap = relativeGap(objective, sol.BestBound)
	}

	logger.Debug("求解结束",
		"status", sol.Status.String(),
		"objective", sol.Objective,
		"bound", sol.BestBound,
		"nodes", sol.Nodes,
		"duration", sol.WallTime,
	)

	return sol, nil
}

// runHelper 反复运行启发式并把可行解交给 incumbent，直到 ctx 结束或超时。
// goroutine 中的 panic 不会被 Solve 的 recover 捕获，需要在这里转换成 PanicError
func runHelper(ctx context.Context, worker *genetic, deadline time.Time, inc *incumbent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	for ctx.Err() == nil && (deadline.IsZero() || time.Now().Before(deadline)) {
		if values, objective, ok := worker.run(ctx, deadline); ok {
			inc.offer(values, objective)
		}
	}
	return nil
}

func relativeGap(objective float64, bound float64) float64 {
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		return math.Inf(1)
	}
	diff := objective - bound
	if diff <= 0 {
		return 0
	}
	return diff / math.Max(math.Abs(objective), 1e-9)
}
