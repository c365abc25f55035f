package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

// Message scheduling_queue 中的一条消息
type Message struct {
	JobID          string            `json:"jobID"`
	SchedulePlanID int64             `json:"schedulePlanID"`
	Options        scheduler.Options `json:"options"`
}

// PlanRepository 任务执行需要的持久化操作，*repository.Repository 实现了该接口
type PlanRepository interface {
	GetSchedulePlanByID(id int64) (*domain.SchedulePlan, error)
	LoadProblemInput(plan *domain.SchedulePlan) (domain.ProblemInput, error)
	InsertSchedulingResult(result *domain.SchedulingResult) error
}

type Runner struct {
	repo           PlanRepository
	store          *Store
	scheduler      *scheduler.Scheduler
	mail           queue.Publisher
	config         scheduler.Config
	publishTimeout time.Duration
	logger         *slog.Logger
}

func NewRunner(
	repo PlanRepository,
	store *Store,
	s *scheduler.Scheduler,
	mail queue.Publisher,
	cfg scheduler.Config,
	publishTimeout time.Duration,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		repo:           repo,
		store:          store,
		scheduler:      s,
		mail:           mail,
		config:         cfg,
		publishTimeout: publishTimeout,
		logger:         logger,
	}
}

// Handle 处理一条消息。只有消息本身无法解析或者 redis 不可用时才返回错误，
// 求解失败会记录在任务状态中并通过邮件通知。
func (r *Runner) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("无法解析任务消息: %w", err)
	}

	job, err := r.store.Update(ctx, msg.JobID, func(job *domain.SchedulingJob) {
		job.Status = domain.JobRunning
	})
	if err != nil {
		return err
	}

	logger := r.logger.With("jobID", job.ID, "schedulePlanID", msg.SchedulePlanID)
	logger.Info("开始执行排班任务")

	plan, result, reason := r.run(ctx, msg)
	planName := fmt.Sprintf("#%d", msg.SchedulePlanID)
	if plan != nil {
		planName = plan.Name
	}

	if reason != "" {
		logger.Warn("排班任务失败", "reason", reason)
		if _, err := r.store.Update(ctx, job.ID, func(job *domain.SchedulingJob) {
			job.Status = domain.JobFailed
			job.Error = reason
		}); err != nil {
			return err
		}
		r.notify(job.NotifyEmail, domain.MailTypeScheduleFailed, domain.ScheduleFailedMailData{
			PlanName: planName,
			JobID:    job.ID,
			Reason:   reason,
		})
		return nil
	}

	if _, err := r.store.Update(ctx, job.ID, func(job *domain.SchedulingJob) {
		job.Status = domain.JobSucceeded
		job.ResultID = result.ID
		job.SolveStatus = result.Schedule.Status
	}); err != nil {
		return err
	}
	logger.Info("排班任务完成", "status", result.Schedule.Status, "resultID", result.ID)

	r.notify(job.NotifyEmail, domain.MailTypeScheduleReady, domain.ScheduleReadyMailData{
		PlanName:        planName,
		JobID:           job.ID,
		Status:          result.Schedule.Status,
		TotalCost:       result.Schedule.Metrics.TotalCost,
		OverallCoverage: result.Schedule.Metrics.OverallCoverage,
		Relaxed:         result.Schedule.Relaxed,
	})
	return nil
}

// run 返回失败原因，成功时为空串
func (r *Runner) run(ctx context.Context, msg Message) (*domain.SchedulePlan, *domain.SchedulingResult, string) {
	plan, err := r.repo.GetSchedulePlanByID(msg.SchedulePlanID)
	if err != nil {
		r.logger.Error("无法获取排班计划", "schedulePlanID", msg.SchedulePlanID, "error", err)
		return nil, nil, "排班计划不存在或无法读取"
	}

	in, err := r.repo.LoadProblemInput(plan)
	if err != nil {
		r.logger.Error("无法读取排班数据", "schedulePlanID", plan.ID, "error", err)
		return plan, nil, "无法读取排班数据"
	}

	schedule, err := Solve(ctx, r.scheduler, in, r.config, msg.Options)
	if reason := FailureReason(schedule, err); reason != "" {
		return plan, nil, reason
	}

	result := &domain.SchedulingResult{
		SchedulePlanID: plan.ID,
		Source:         domain.SourceGenerated,
		Schedule:       *schedule,
	}
	if err := r.repo.InsertSchedulingResult(result); err != nil {
		r.logger.Error("无法保存排班结果", "schedulePlanID", plan.ID, "error", err)
		return plan, nil, "无法保存排班结果"
	}
	return plan, result, ""
}

func (r *Runner) notify(to string, mailType string, data any) {
	if to == "" || r.mail == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.publishTimeout)
	defer cancel()

	msg := domain.MailMessage{Type: mailType, To: to, Data: data}
	if err := queue.PublishJSON(ctx, r.mail, queue.EmailQueue, msg); err != nil {
		r.logger.Error("无法发送邮件到消息队列", "type", mailType, "error", err)
	}
}
