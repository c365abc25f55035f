package jobs

import (
	"context"
	"errors"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scenario"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

// Solve 按请求参数覆盖默认配置后求解。同步接口和异步任务共用这一流程。
func Solve(ctx context.Context, s *scheduler.Scheduler, in domain.ProblemInput, base scheduler.Config, opts scheduler.Options) (*domain.Schedule, error) {
	if opts.DemandMultiplier != nil {
		in = scenario.ScaleDemand(in, *opts.DemandMultiplier)
	}

	p, err := domain.NewProblem(in)
	if err != nil {
		return nil, err
	}

	return s.Schedule(ctx, p, opts.Apply(base))
}

// FailureReason 把求解失败的原因整理为可以展示给用户的文字，成功时返回空串
func FailureReason(schedule *domain.Schedule, err error) string {
	var verr *domain.ValidationError
	var infeasible *scheduler.InfeasibleModelError
	var internal *scheduler.InternalSolverError

	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &infeasible):
		return infeasible.Error()
	case errors.As(err, &internal):
		return "求解器内部错误"
	case err != nil:
		return err.Error()
	case schedule == nil:
		return "没有求解结果"
	case schedule.Status == domain.StatusTimedOutNoSolution:
		return "在时间限制内没有找到可行的排班"
	case schedule.SolveInfo.Cancelled && !schedule.Status.HasSolution():
		return "求解已取消"
	}
	return ""
}
