package domain

import "time"

type Role string

const (
	RoleFrontLine  Role = "front-line"
	RoleStock      Role = "stock"
	RoleSupervisor Role = "supervisor"
)

var Roles = []Role{RoleFrontLine, RoleStock, RoleSupervisor}

type EmploymentClass string

const (
	EmploymentFullTime EmploymentClass = "full-time"
	EmploymentPartTime EmploymentClass = "part-time"
)

type Employee struct {
	ID              string          `json:"id" validate:"required,max=64"`
	Name            string          `json:"name" validate:"max=100"`
	Role            Role            `json:"role" validate:"required,oneof=front-line stock supervisor"`
	HourlyWage      float64         `json:"hourlyWage" validate:"gt=0"`
	WeeklyHoursCap  int             `json:"weeklyHoursCap" validate:"gt=0"`
	EmploymentClass EmploymentClass `json:"employmentClass" validate:"required,oneof=full-time part-time"`
	CreatedAt       time.Time       `json:"createdAt"`
	Version         int32           `json:"-"`
}
