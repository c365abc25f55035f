package scheduler

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func ptr[T any](v T) *T {
	return &v
}

func TestOptionsApply(t *testing.T) {
	base := DefaultConfig()

	assert.Equal(t, base, Options{}.Apply(base))

	cfg := Options{
		CoverageMode:     ptr(ModeHard),
		SupervisorMode:   ptr(ModeSoft),
		OvertimeCapHours: ptr(4.0),
		TimeBudget:       ptr(5),
		Workers:          ptr(3),
		MutationRate:     ptr(0.2),
	}.Apply(base)

	assert.True(t, cfg.Coverage.IsHard())
	assert.Equal(t, Soft(base.SupervisorRelaxWeight), cfg.SupervisorPresence)
	require.NotNil(t, cfg.OvertimeCapHours)
	assert.Equal(t, 4.0, *cfg.OvertimeCapHours)
	assert.Equal(t, 5*time.Second, cfg.TimeBudget)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 0.2, cfg.Heuristic.MutationRate)

	// base 不受影响
	assert.Equal(t, DefaultConfig(), base)
}

func TestOptionsApplyPenalty(t *testing.T) {
	base := DefaultConfig()

	cfg := Options{CoveragePenalty: ptr(80.0)}.Apply(base)
	assert.Equal(t, Soft(80), cfg.Coverage)
	assert.Equal(t, 80.0, cfg.CoverageRelaxWeight)

	// 硬约束时只改变松弛权重
	cfg = Options{SupervisorPenalty: ptr(70.0)}.Apply(base)
	assert.True(t, cfg.SupervisorPresence.IsHard())
	assert.Equal(t, 70.0, cfg.SupervisorRelaxWeight)

	cfg = Options{SupervisorMode: ptr(ModeSoft), SupervisorPenalty: ptr(70.0)}.Apply(base)
	assert.Equal(t, Soft(70), cfg.SupervisorPresence)
}

func TestEvaluate(t *testing.T) {
	p := newProblem(t, smallStore())
	day := p.Date(0)

	schedule, err := Evaluate(p, DefaultConfig(), []domain.Assignment{
		{EmployeeID: "EMP003", Date: day, Shift: "day"},
		{EmployeeID: "EMP001", Date: day, Shift: "day"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFeasible, schedule.Status)
	require.Len(t, schedule.Assignments, 2)
	assert.Equal(t, "EMP001", schedule.Assignments[0].EmployeeID)
	assert.Equal(t, domain.RoleFrontLine, schedule.Assignments[0].Role)
	assert.Equal(t, 8.0, schedule.Assignments[0].Hours)
	assert.InDelta(t, 8*15+8*22, schedule.Metrics.TotalCost, 1e-9)
	assert.Equal(t, 1, schedule.Metrics.UnmetDemand)
	assert.InDelta(t, 500, schedule.Metrics.PenaltyCost, 1e-9)
	assert.NotEmpty(t, schedule.Fingerprint)
}

func TestEvaluateRejectsDoubleBooking(t *testing.T) {
	p := newProblem(t, smallStore())
	day := p.Date(0)

	_, err := Evaluate(p, DefaultConfig(), []domain.Assignment{
		{EmployeeID: "EMP001", Date: day, Shift: "day"},
		{EmployeeID: "EMP001", Date: day, Shift: "day"},
	})
	assert.ErrorContains(t, err, "重复")
}

func TestOptionsRejectZeroHeuristicParameters(t *testing.T) {
	validate := validator.New()

	for name, opts := range map[string]Options{
		"crossoverRate": {CrossoverRate: ptr(0.0)},
		"mutationRate":  {MutationRate: ptr(0.0)},
		"eliteCount":    {EliteCount: ptr(int32(0))},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validate.Struct(opts))
		})
	}

	require.NoError(t, validate.Struct(Options{
		CrossoverRate: ptr(1.0),
		MutationRate:  ptr(0.05),
		EliteCount:    ptr(int32(1)),
	}))
}
