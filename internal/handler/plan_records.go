package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

type availabilityRow struct {
	EmployeeID       string   `json:"employeeID" validate:"required"`
	Date             string   `json:"date" validate:"required,datetime=2006-01-02"`
	Shift            string   `json:"shift" validate:"required"`
	Available        bool     `json:"available"`
	PreferenceWeight *float64 `json:"preferenceWeight" validate:"omitempty,gte=0"`
}

type demandRow struct {
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Shift             string `json:"shift" validate:"required"`
	Role              string `json:"role" validate:"required,oneof=front-line stock supervisor"`
	RequiredHeadcount int    `json:"requiredHeadcount" validate:"gte=0"`
}

// checkPlanScope 检查记录引用的日期和班次都属于排班计划
func (h *Handler) checkPlanScope(plan *domain.SchedulePlan, field string, dates []time.Time, shifts []string) error {
	template, err := h.repository.GetShiftTemplateByID(plan.ShiftTemplateID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(template.Shifts))
	for _, s := range template.Shifts {
		known[s.Name] = true
	}

	horizon := plan.Horizon()
	verr := &domain.ValidationError{}
	for i := range dates {
		path := fmt.Sprintf("%s[%d]", field, i)
		if !horizon.Contains(dates[i]) {
			verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: path, Message: fmt.Sprintf("日期 %s 不在规划周期内", domain.FormatDate(dates[i]))})
		}
		if !known[shifts[i]] {
			verr.Issues = append(verr.Issues, domain.ValidationIssue{Field: path, Message: fmt.Sprintf("班次 %q 不在班次模板中", shifts[i])})
		}
	}
	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	slots, err := h.repository.GetAvailabilityBySchedulePlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取可用时间成功", slots)
}

func (h *Handler) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	var req []availabilityRow

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Var(req, "dive"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	slots := make([]domain.AvailabilitySlot, len(req))
	for i, row := range req {
		date, _ := domain.ParseDate(row.Date)
		slots[i] = domain.AvailabilitySlot{
			EmployeeID:       row.EmployeeID,
			Date:             date,
			Shift:            row.Shift,
			Available:        row.Available,
			PreferenceWeight: row.PreferenceWeight,
		}
	}

	h.saveAvailability(w, r, slots)
}

func (h *Handler) ImportAvailability(w http.ResponseWriter, r *http.Request) {
	slots, err := utils.ParseAvailabilityCSV(h.uploadBody(w, r))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Var(slots, "dive"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.saveAvailability(w, r, slots)
}

func (h *Handler) saveAvailability(w http.ResponseWriter, r *http.Request, slots []domain.AvailabilitySlot) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	dates := make([]time.Time, len(slots))
	shifts := make([]string, len(slots))
	records := make([]*domain.AvailabilitySlot, len(slots))
	for i := range slots {
		dates[i], shifts[i] = slots[i].Date, slots[i].Shift
		records[i] = &slots[i]
	}
	if err := h.checkPlanScope(plan, "availability", dates, shifts); err != nil {
		h.recordsError(w, r, err)
		return
	}

	if err := h.repository.ReplaceAvailability(plan.ID, records); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "availability_slots_employee_id_fkey":
			h.errorResponse(w, r, "可用时间中引用了不存在的员工")
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "availability_slots_pkey":
			h.errorResponse(w, r, "同一员工在同一天同一班次的可用时间重复")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "保存可用时间成功", records)
}

func (h *Handler) GetDemand(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	demand, err := h.repository.GetDemandBySchedulePlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取人员需求成功", demand)
}

func (h *Handler) ReplaceDemand(w http.ResponseWriter, r *http.Request) {
	var req []demandRow

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Var(req, "dive"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	demand := make([]domain.DemandRequirement, len(req))
	for i, row := range req {
		date, _ := domain.ParseDate(row.Date)
		demand[i] = domain.DemandRequirement{
			Date:              date,
			Shift:             row.Shift,
			Role:              domain.Role(row.Role),
			RequiredHeadcount: row.RequiredHeadcount,
		}
	}

	h.saveDemand(w, r, demand)
}

func (h *Handler) ImportDemand(w http.ResponseWriter, r *http.Request) {
	demand, err := utils.ParseDemandCSV(h.uploadBody(w, r))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Var(demand, "dive"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.saveDemand(w, r, demand)
}

func (h *Handler) saveDemand(w http.ResponseWriter, r *http.Request, demand []domain.DemandRequirement) {
	plan := r.Context().Value(SchedulePlanCtx).(*domain.SchedulePlan)

	dates := make([]time.Time, len(demand))
	shifts := make([]string, len(demand))
	records := make([]*domain.DemandRequirement, len(demand))
	for i := range demand {
		dates[i], shifts[i] = demand[i].Date, demand[i].Shift
		records[i] = &demand[i]
	}
	if err := h.checkPlanScope(plan, "demand", dates, shifts); err != nil {
		h.recordsError(w, r, err)
		return
	}

	if err := h.repository.ReplaceDemand(plan.ID, records); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "demand_requirements_pkey":
			h.errorResponse(w, r, "同一天同一班次同一角色的需求重复")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "保存人员需求成功", records)
}

func (h *Handler) recordsError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		h.badRequest(w, r, err)
		return
	}
	h.internalServerError(w, r, err)
}
