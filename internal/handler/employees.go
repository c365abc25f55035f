package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.repository.GetAllEmployees()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取员工列表成功", employees)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e := r.Context().Value(EmployeeCtx).(*domain.Employee)
	h.successResponse(w, r, "获取员工信息成功", e)
}

// UpsertEmployees 按 ID 新增或更新一批员工
func (h *Handler) UpsertEmployees(w http.ResponseWriter, r *http.Request) {
	var req []*domain.Employee

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	for _, e := range req {
		if e != nil && e.EmploymentClass == "" {
			e.EmploymentClass = domain.EmploymentFullTime
		}
	}
	if err := h.validate.Var(req, "required,min=1,dive,required"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.saveEmployees(w, r, req)
}

func (h *Handler) ImportEmployees(w http.ResponseWriter, r *http.Request) {
	parsed, err := utils.ParseEmployeesCSV(h.uploadBody(w, r))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	employees := make([]*domain.Employee, len(parsed))
	for i := range parsed {
		employees[i] = &parsed[i]
	}
	if err := h.validate.Var(employees, "required,min=1,dive,required"); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.saveEmployees(w, r, employees)
}

func (h *Handler) saveEmployees(w http.ResponseWriter, r *http.Request, employees []*domain.Employee) {
	seen := make(map[string]bool, len(employees))
	for _, e := range employees {
		if seen[e.ID] {
			h.errorResponse(w, r, "员工 ID "+e.ID+" 重复")
			return
		}
		seen[e.ID] = true
	}

	if err := h.repository.UpsertEmployees(employees); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "保存员工成功", employees)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	e := r.Context().Value(EmployeeCtx).(*domain.Employee)

	if err := h.repository.DeleteEmployee(e.ID); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "availability_slots_employee_id_fkey":
			h.errorResponse(w, r, "该员工在排班计划中登记了可用时间，无法删除")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除员工成功", nil)
}
