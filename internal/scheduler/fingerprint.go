package scheduler

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

type fingerprintEmployee struct {
	ID              string
	Role            string
	HourlyWage      float64
	WeeklyHoursCap  int
	EmploymentClass string
}

type fingerprintSlot struct {
	Employee      string
	Date          string
	Shift         string
	HasPreference bool
	Preference    float64
}

type fingerprintDemand struct {
	Date     string
	Shift    string
	Role     string
	Required int
}

type fingerprintHours struct {
	Date  string
	Shift string
	Hours float64
}

// fingerprintInput 参与指纹计算的全部内容。
// 可用性使用展开后的结果，因此默认策略与逐条声明等价的输入会得到同一个指纹。
type fingerprintInput struct {
	Start     string
	End       string
	Shifts    []string // 班次顺序决定输出的排序，因此保留顺序
	Hours     []fingerprintHours    `hash:"set"`
	Employees []fingerprintEmployee `hash:"set"`
	Slots     []fingerprintSlot     `hash:"set"`
	Demand    []fingerprintDemand   `hash:"set"`

	Config           Config
	OvertimeCapIsSet bool
}

// Fingerprint 输入记录和求解配置的内容哈希，作为结果缓存的键
func Fingerprint(p *domain.Problem, cfg Config) (string, error) {
	in := fingerprintInput{
		Start:            domain.FormatDate(p.Horizon().Start),
		End:              domain.FormatDate(p.Horizon().End),
		Config:           cfg,
		OvertimeCapIsSet: cfg.OvertimeCapHours != nil,
	}

	for s := 0; s < p.NumShifts(); s++ {
		in.Shifts = append(in.Shifts, p.Shift(s).Name)
	}
	for d := 0; d < p.NumDays(); d++ {
		date := domain.FormatDate(p.Date(d))
		for s := 0; s < p.NumShifts(); s++ {
			shift := p.Shift(s).Name
			in.Hours = append(in.Hours, fingerprintHours{Date: date, Shift: shift, Hours: p.Hours(d, s)})

			for _, role := range domain.Roles {
				if required := p.Demand(d, s, role); required > 0 {
					in.Demand = append(in.Demand, fingerprintDemand{Date: date, Shift: shift, Role: string(role), Required: required})
				}
			}
		}
	}

	for e := 0; e < p.NumEmployees(); e++ {
		emp := p.Employee(e)
		in.Employees = append(in.Employees, fingerprintEmployee{
			ID:              emp.ID,
			Role:            string(emp.Role),
			HourlyWage:      emp.HourlyWage,
			WeeklyHoursCap:  emp.WeeklyHoursCap,
			EmploymentClass: string(emp.EmploymentClass),
		})

		for d := 0; d < p.NumDays(); d++ {
			for s := 0; s < p.NumShifts(); s++ {
				key := domain.SlotKey{Employee: e, Day: d, Shift: s}
				if !p.Eligible(key) {
					continue
				}
				slot := fingerprintSlot{Employee: emp.ID, Date: domain.FormatDate(p.Date(d)), Shift: p.Shift(s).Name}
				slot.Preference, slot.HasPreference = p.Preference(key)
				in.Slots = append(in.Slots, slot)
			}
		}
	}

	hash, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("无法计算输入指纹: %w", err)
	}
	return fmt.Sprintf("%016x", hash), nil
}
