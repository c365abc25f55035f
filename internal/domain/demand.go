package domain

import "time"

// DemandRequirement 某天某班次某角色需要的人数，没有记录的组合视为 0
type DemandRequirement struct {
	Date              time.Time `json:"date" validate:"required"`
	Shift             string    `json:"shift" validate:"required"`
	Role              Role      `json:"role" validate:"required,oneof=front-line stock supervisor"`
	RequiredHeadcount int       `json:"requiredHeadcount" validate:"gte=0"`
}
