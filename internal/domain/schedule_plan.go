package domain

import "time"

type SchedulePlan struct {
	ID                  int64              `json:"id"`
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	HorizonStart        time.Time          `json:"horizonStart"`
	HorizonEnd          time.Time          `json:"horizonEnd"`
	ShiftTemplateID     int64              `json:"shiftTemplateID"`
	DefaultAvailability AvailabilityPolicy `json:"defaultAvailability"`
	CreatedAt           time.Time          `json:"createdAt"`
	Version             int32              `json:"-"`
}

func (p *SchedulePlan) Horizon() Horizon {
	return Horizon{Start: p.HorizonStart, End: p.HorizonEnd}
}
