package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/jobs"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scenario"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

func (h *Handler) GetSchedulingResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	result, err := h.repository.GetSchedulingResultBySchedulePlanID(plan.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.successResponse(w, r, "该排班计划还没有排班结果", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取排班结果成功", result)
}

// ExportSchedulingResult 以 CSV 格式导出排班
func (h *Handler) ExportSchedulingResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	result, err := h.repository.GetSchedulingResultBySchedulePlanID(plan.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "该排班计划还没有排班结果")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=schedule-plan-%d.csv", plan.ID))
	if err := utils.WriteAssignmentsCSV(w, result.Schedule.Assignments); err != nil {
		h.logInternalServerError(r, err)
	}
}

// SubmitSchedulingResult 保存手动编排的排班，指标由服务端重新计算
func (h *Handler) SubmitSchedulingResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	var req []struct {
		EmployeeID string `json:"employeeID" validate:"required"`
		Date       string `json:"date" validate:"required,datetime=2006-01-02"`
		Shift      string `json:"shift" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Var(req, "dive"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	assignments := make([]domain.Assignment, len(req))
	for i, item := range req {
		date, _ := domain.ParseDate(item.Date)
		assignments[i] = domain.Assignment{EmployeeID: item.EmployeeID, Date: date, Shift: item.Shift}
	}

	p, ok := h.planProblem(w, r, plan, nil)
	if !ok {
		return
	}
	cfg, err := h.config.SchedulerConfig()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	schedule, err := scheduler.Evaluate(p, cfg, assignments)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	result := &domain.SchedulingResult{
		SchedulePlanID: plan.ID,
		Source:         domain.SourceManual,
		Schedule:       *schedule,
	}
	if err := h.repository.InsertSchedulingResult(result); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "提交排班结果成功", result)
}

// readOptions 请求体为空时使用默认配置
func (h *Handler) readOptions(r *http.Request) (scheduler.Options, error) {
	var opts scheduler.Options
	if err := h.readJSON(r, &opts); err != nil && !errors.Is(err, io.EOF) {
		return scheduler.Options{}, err
	}
	if err := h.validate.Struct(opts); err != nil {
		return scheduler.Options{}, err
	}
	return opts, nil
}

// planProblem 读取排班计划的数据并构造求解问题，失败时已经写好响应
func (h *Handler) planProblem(w http.ResponseWriter, r *http.Request, plan *domain.SchedulePlan, multiplier *float64) (*domain.Problem, bool) {
	in, err := h.repository.LoadProblemInput(plan)
	if err != nil {
		h.internalServerError(w, r, err)
		return nil, false
	}
	if multiplier != nil {
		in = scenario.ScaleDemand(in, *multiplier)
	}

	p, err := domain.NewProblem(in)
	if err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	return p, true
}

// solveFailed 根据求解错误写响应。无解时仍然把诊断结果返回给前端
func (h *Handler) solveFailed(w http.ResponseWriter, r *http.Request, schedule *domain.Schedule, err error) {
	var verr *domain.ValidationError
	var infeasible *scheduler.InfeasibleModelError
	switch {
	case errors.As(err, &verr):
		h.badRequest(w, r, err)
	case errors.As(err, &infeasible):
		h.writeJSON(w, r, http.StatusOK, Response{
			Success: false,
			Message: infeasible.Error(),
			Data:    schedule,
		})
	case err != nil:
		h.internalServerError(w, r, err)
	default:
		h.errorResponse(w, r, jobs.FailureReason(schedule, nil))
	}
}

func (h *Handler) GenerateSchedulingResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	opts, err := h.readOptions(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	base, err := h.config.SchedulerConfig()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	in, err := h.repository.LoadProblemInput(plan)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	schedule, err := jobs.Solve(r.Context(), h.scheduler, in, base, opts)
	if err != nil || !schedule.Status.HasSolution() {
		h.solveFailed(w, r, schedule, err)
		return
	}

	result := &domain.SchedulingResult{
		SchedulePlanID: plan.ID,
		Source:         domain.SourceGenerated,
		Schedule:       *schedule,
	}
	if err := h.repository.InsertSchedulingResult(result); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "生成排班结果成功", result)
}

// GenerateSchedulingResultAsync 把求解任务放入队列，完成后通过邮件通知
func (h *Handler) GenerateSchedulingResultAsync(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	opts, err := h.readOptions(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	now := time.Now()
	job := &domain.SchedulingJob{
		ID:             uuid.NewString(),
		SchedulePlanID: plan.ID,
		RequestedBy:    myInfo.Username,
		NotifyEmail:    myInfo.Email,
		Status:         domain.JobQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	traceOf(r).JobID = job.ID

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	if err := h.jobStore.Save(ctx, job); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	msg := jobs.Message{JobID: job.ID, SchedulePlanID: plan.ID, Options: opts}
	if err := queue.PublishJSON(ctx, h.publisher, queue.SchedulingQueue, msg); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "排班任务已提交", job)
}

func (h *Handler) GetSchedulingJob(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	jobID := chi.URLParam(r, "id")
	traceOf(r).JobID = jobID

	job, err := h.jobStore.Get(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			h.errorResponse(w, r, "任务不存在或已过期")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取任务状态成功", job)
}

// RunScenarios 在当前排班计划的数据上比较若干假设场景
func (h *Handler) RunScenarios(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	var req struct {
		Options   scheduler.Options   `json:"options"`
		Scenarios []scenario.Scenario `json:"scenarios" validate:"required,min=1,max=10,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	base, err := h.config.SchedulerConfig()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	p, ok := h.planProblem(w, r, plan, req.Options.DemandMultiplier)
	if !ok {
		return
	}

	report, err := h.scenarios.RunAll(r.Context(), p, req.Options.Apply(base), req.Scenarios)
	if err != nil {
		h.solveFailed(w, r, nil, err)
		return
	}

	h.successResponse(w, r, "场景分析完成", report)
}
