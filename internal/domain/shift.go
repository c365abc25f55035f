package domain

import "time"

// Shift 一天中的一个班次，周期内的每一天共用
type Shift struct {
	Name          string  `json:"name" validate:"required,max=50"`
	DurationHours float64 `json:"durationHours" validate:"gt=0,lte=24"`
}

// ShiftOverride 覆盖某一天某个班次的时长
type ShiftOverride struct {
	Date          time.Time `json:"date" validate:"required"`
	Shift         string    `json:"shift" validate:"required"`
	DurationHours float64   `json:"durationHours" validate:"gt=0,lte=24"`
}

type ShiftTemplateShift struct {
	ID        int64  `json:"id"`
	Name      string `json:"name" validate:"required,max=50"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

type ShiftTemplate struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Shifts      []ShiftTemplateShift `json:"shifts"`
	CreatedAt   time.Time            `json:"createdAt"`
	Version     int32                `json:"-"`
}
