package domain

import "time"

type SchedulingResultSource string

const (
	SourceGenerated SchedulingResultSource = "generated"
	SourceManual    SchedulingResultSource = "manual"
)

type SchedulingResult struct {
	ID             int64                  `json:"id"`
	SchedulePlanID int64                  `json:"schedulePlanID"`
	Source         SchedulingResultSource `json:"source"`
	Schedule       Schedule               `json:"schedule"`
	CreatedAt      time.Time              `json:"createdAt"`
	Version        int32                  `json:"-"`
}

type SchedulingJobStatus string

const (
	JobQueued    SchedulingJobStatus = "queued"
	JobRunning   SchedulingJobStatus = "running"
	JobSucceeded SchedulingJobStatus = "succeeded"
	JobFailed    SchedulingJobStatus = "failed"
)

// SchedulingJob 异步排班任务，状态保存在 redis 中
type SchedulingJob struct {
	ID             string              `json:"id"`
	SchedulePlanID int64               `json:"schedulePlanID"`
	RequestedBy    string              `json:"requestedBy"`
	NotifyEmail    string              `json:"notifyEmail"`
	Status         SchedulingJobStatus `json:"status"`
	Error          string              `json:"error,omitempty"`
	ResultID       int64               `json:"resultID,omitempty"`
	SolveStatus    SolveStatus         `json:"solveStatus,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}
