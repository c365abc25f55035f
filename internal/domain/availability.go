package domain

import "time"

type AvailabilitySlot struct {
	EmployeeID       string    `json:"employeeID" validate:"required"`
	Date             time.Time `json:"date" validate:"required"`
	Shift            string    `json:"shift" validate:"required"`
	Available        bool      `json:"available"`
	PreferenceWeight *float64  `json:"preferenceWeight,omitempty" validate:"omitempty,gte=0"`
}

// AvailabilityPolicy 决定没有记录的 (员工, 日期, 班次) 是否可排
type AvailabilityPolicy string

const (
	AvailabilityUnavailable AvailabilityPolicy = "unavailable"
	AvailabilityAvailable   AvailabilityPolicy = "available"
)
