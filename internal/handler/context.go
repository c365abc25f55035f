package handler

import (
	"context"
	"net/http"
)

type ContextKey string

var (
	TraceCtx         ContextKey = "trace"
	SubCtxKey        ContextKey = "sub"
	MyInfoCtx        ContextKey = "myInfo"
	UserInfoCtx      ContextKey = "userInfo"
	EmployeeCtx      ContextKey = "employee"
	ShiftTemplateCtx ContextKey = "shiftTemplate"
	SchedulePlanCtx  ContextKey = "schedulePlan"
)

// requestTrace 由 logger 中间件创建，后面的中间件和 handler 往里面补充排班相关的 ID，
// 请求结束时一起写进访问日志
type requestTrace struct {
	ID             string
	UserID         int64
	SchedulePlanID int64
	JobID          string
}

func (t *requestTrace) attrs() []any {
	attrs := []any{"request_id", t.ID}
	if t.UserID != 0 {
		attrs = append(attrs, "user_id", t.UserID)
	}
	if t.SchedulePlanID != 0 {
		attrs = append(attrs, "schedule_plan_id", t.SchedulePlanID)
	}
	if t.JobID != "" {
		attrs = append(attrs, "job_id", t.JobID)
	}
	return attrs
}

func withTrace(ctx context.Context, t *requestTrace) context.Context {
	return context.WithValue(ctx, TraceCtx, t)
}

// traceOf 没有经过 logger 中间件时返回一个不会被记录的空 trace
func traceOf(r *http.Request) *requestTrace {
	if t, ok := r.Context().Value(TraceCtx).(*requestTrace); ok {
		return t
	}
	return &requestTrace{}
}
