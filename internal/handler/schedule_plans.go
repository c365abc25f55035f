package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

func (h *Handler) CreateSchedulePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                string `json:"name" validate:"required,max=100"`
		Description         string `json:"description"`
		HorizonStart        string `json:"horizonStart" validate:"required,datetime=2006-01-02"`
		HorizonEnd          string `json:"horizonEnd" validate:"required,datetime=2006-01-02"`
		ShiftTemplateID     int64  `json:"shiftTemplateID" validate:"required"`
		DefaultAvailability string `json:"defaultAvailability" validate:"omitempty,oneof=available unavailable"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	start, _ := domain.ParseDate(req.HorizonStart)
	end, _ := domain.ParseDate(req.HorizonEnd)
	plan := &domain.SchedulePlan{
		Name:                req.Name,
		Description:         req.Description,
		HorizonStart:        start,
		HorizonEnd:          end,
		ShiftTemplateID:     req.ShiftTemplateID,
		DefaultAvailability: domain.AvailabilityPolicy(req.DefaultAvailability),
	}
	if plan.DefaultAvailability == "" {
		plan.DefaultAvailability = h.config.DefaultAvailability()
	}

	if err := utils.ValidateSchedulePlanHorizon(plan); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateSchedulePlan(plan); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "schedule_plans_name_key":
				h.errorResponse(w, r, "排班计划名称已存在")
			case "schedule_plans_shift_template_id_fkey":
				h.errorResponse(w, r, "班次模板不存在")
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建排班计划成功", plan)
}

func (h *Handler) GetSchedulePlanByID(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	h.successResponse(w, r, "获取排班计划成功", plan)
}

func (h *Handler) DeleteSchedulePlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	if err := h.repository.DeleteSchedulePlan(plan.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除排班计划成功", nil)
}

func (h *Handler) UpdateSchedulePlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	var req struct {
		Name                *string `json:"name" validate:"omitempty,min=1,max=100"`
		Description         *string `json:"description"`
		HorizonStart        *string `json:"horizonStart" validate:"omitempty,datetime=2006-01-02"`
		HorizonEnd          *string `json:"horizonEnd" validate:"omitempty,datetime=2006-01-02"`
		DefaultAvailability *string `json:"defaultAvailability" validate:"omitempty,oneof=available unavailable"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 将输入的参数解析到 plan 中
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.HorizonStart != nil {
		plan.HorizonStart, _ = domain.ParseDate(*req.HorizonStart)
	}
	if req.HorizonEnd != nil {
		plan.HorizonEnd, _ = domain.ParseDate(*req.HorizonEnd)
	}
	if req.DefaultAvailability != nil {
		plan.DefaultAvailability = domain.AvailabilityPolicy(*req.DefaultAvailability)
	}

	if err := utils.ValidateSchedulePlanHorizon(plan); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateSchedulePlan(plan); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "schedule_plans_name_key":
			h.errorResponse(w, r, "排班计划名称已存在")
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新排班计划成功", plan)
}

func (h *Handler) GetAllSchedulePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.repository.GetAllSchedulePlans()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有排班计划成功", plans)
}
