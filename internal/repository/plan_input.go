package repository

import (
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

// LoadProblemInput 读取排班计划关联的班次模板、员工、可用性和需求，组装为求解输入
func (r *Repository) LoadProblemInput(plan *domain.SchedulePlan) (domain.ProblemInput, error) {
	template, err := r.GetShiftTemplateByID(plan.ShiftTemplateID)
	if err != nil {
		return domain.ProblemInput{}, err
	}

	employees, err := r.GetAllEmployees()
	if err != nil {
		return domain.ProblemInput{}, err
	}

	availability, err := r.GetAvailabilityBySchedulePlanID(plan.ID)
	if err != nil {
		return domain.ProblemInput{}, err
	}

	demand, err := r.GetDemandBySchedulePlanID(plan.ID)
	if err != nil {
		return domain.ProblemInput{}, err
	}

	return utils.BuildProblemInput(plan, template, employees, availability, demand)
}
