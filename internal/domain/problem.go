package domain

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// ProblemInput 调用方持有的原始记录
type ProblemInput struct {
	Horizon             Horizon             `json:"horizon"`
	Employees           []Employee          `json:"employees"`
	Shifts              []Shift             `json:"shifts"`
	ShiftOverrides      []ShiftOverride     `json:"shiftOverrides"`
	Availability        []AvailabilitySlot  `json:"availability"`
	Demand              []DemandRequirement `json:"demand"`
	DefaultAvailability AvailabilityPolicy  `json:"defaultAvailability"`
}

// SlotKey 使用员工、日期、班次在 Problem 中的下标
type SlotKey struct {
	Employee int
	Day      int
	Shift    int
}

type DemandKey struct {
	Day   int
	Shift int
	Role  Role
}

// Problem 经过校验的、不可变的问题快照，只能通过 NewProblem 构造
type Problem struct {
	input ProblemInput

	days          []time.Time
	employees     []Employee // 按 ID 排序
	employeeIndex map[string]int
	shifts        []Shift
	shiftIndex    map[string]int
	hours         [][]float64 // [day][shift]
	slots         map[SlotKey]AvailabilitySlot
	demand        map[DemandKey]int
}

// NewProblem 校验输入并构造 Problem。这是唯一进行输入校验的地方，
// 后续的建模、求解都假设引用的日期、班次、员工一定存在。
func NewProblem(in ProblemInput) (*Problem, error) {
	in = in.Clone()
	verr := &ValidationError{}

	checkStruct(verr, "horizon", in.Horizon)
	in.Horizon.Start, in.Horizon.End = Day(in.Horizon.Start), Day(in.Horizon.End)
	if in.Horizon.End.Before(in.Horizon.Start) {
		verr.add("horizon", "结束日期 %s 不能早于开始日期 %s", FormatDate(in.Horizon.End), FormatDate(in.Horizon.Start))
	} else if n := in.Horizon.NumDays(); n > MaxHorizonDays {
		verr.add("horizon", "规划周期为 %d 天，不能超过 %d 天", n, MaxHorizonDays)
	}

	switch in.DefaultAvailability {
	case "":
		in.DefaultAvailability = AvailabilityUnavailable
	case AvailabilityUnavailable, AvailabilityAvailable:
	default:
		verr.add("defaultAvailability", "未知的默认可用性策略 %q", in.DefaultAvailability)
	}

	p := &Problem{
		employeeIndex: make(map[string]int, len(in.Employees)),
		shiftIndex:    make(map[string]int, len(in.Shifts)),
		slots:         make(map[SlotKey]AvailabilitySlot, len(in.Availability)),
		demand:        make(map[DemandKey]int, len(in.Demand)),
	}

	if in.Horizon.NumDays() <= MaxHorizonDays {
		p.days = in.Horizon.Days()
	}

	// 班次
	if len(in.Shifts) == 0 {
		verr.add("shifts", "至少需要一个班次")
	}
	for i, s := range in.Shifts {
		path := fmt.Sprintf("shifts[%d]", i)
		checkStruct(verr, path, s)
		if _, exists := p.shiftIndex[s.Name]; exists {
			verr.add(path, "班次名称 %q 重复", s.Name)
			continue
		}
		p.shiftIndex[s.Name] = len(p.shifts)
		p.shifts = append(p.shifts, s)
	}

	// 员工
	for i, e := range in.Employees {
		path := fmt.Sprintf("employees[%d]", i)
		checkStruct(verr, path, e)
		if _, exists := p.employeeIndex[e.ID]; exists {
			verr.add(path, "员工 ID %q 重复", e.ID)
			continue
		}
		p.employeeIndex[e.ID] = -1
		p.employees = append(p.employees, e)
	}
	sort.SliceStable(p.employees, func(i, j int) bool {
		return p.employees[i].ID < p.employees[j].ID
	})
	for i, e := range p.employees {
		p.employeeIndex[e.ID] = i
	}

	resolve := func(path string, date time.Time, shift string) (int, int, bool) {
		day, dayOK := in.Horizon.Index(date)
		dayOK = dayOK && day < len(p.days)
		if !dayOK {
			verr.add(path, "日期 %s 不在规划周期内", FormatDate(date))
		}
		s, shiftOK := p.shiftIndex[shift]
		if !shiftOK {
			verr.add(path, "班次 %q 未声明", shift)
		}
		return day, s, dayOK && shiftOK
	}

	// 班次时长覆盖
	p.hours = make([][]float64, len(p.days))
	for d := range p.hours {
		p.hours[d] = make([]float64, len(p.shifts))
		for s, shift := range p.shifts {
			p.hours[d][s] = shift.DurationHours
		}
	}
	overridden := make(map[[2]int]bool, len(in.ShiftOverrides))
	for i, o := range in.ShiftOverrides {
		path := fmt.Sprintf("shiftOverrides[%d]", i)
		checkStruct(verr, path, o)
		day, s, ok := resolve(path, o.Date, o.Shift)
		if !ok {
			continue
		}
		if overridden[[2]int{day, s}] {
			verr.add(path, "%s 的班次 %q 重复覆盖", FormatDate(o.Date), o.Shift)
			continue
		}
		overridden[[2]int{day, s}] = true
		p.hours[day][s] = o.DurationHours
	}

	// 可用性
	for i, slot := range in.Availability {
		path := fmt.Sprintf("availability[%d]", i)
		checkStruct(verr, path, slot)
		day, s, ok := resolve(path, slot.Date, slot.Shift)
		e, known := p.employeeIndex[slot.EmployeeID]
		if !known {
			verr.add(path, "员工 %q 不存在", slot.EmployeeID)
		}
		if !ok || !known || e < 0 {
			continue
		}
		key := SlotKey{Employee: e, Day: day, Shift: s}
		if _, exists := p.slots[key]; exists {
			verr.add(path, "员工 %q 在 %s 的班次 %q 的可用性重复", slot.EmployeeID, FormatDate(slot.Date), slot.Shift)
			continue
		}
		slot.Date = Day(slot.Date)
		p.slots[key] = slot
	}

	// 需求
	for i, d := range in.Demand {
		path := fmt.Sprintf("demand[%d]", i)
		checkStruct(verr, path, d)
		day, s, ok := resolve(path, d.Date, d.Shift)
		if !ok {
			continue
		}
		key := DemandKey{Day: day, Shift: s, Role: d.Role}
		if _, exists := p.demand[key]; exists {
			verr.add(path, "%s 的班次 %q 中角色 %q 的需求重复", FormatDate(d.Date), d.Shift, d.Role)
			continue
		}
		p.demand[key] = d.RequiredHeadcount
	}

	if len(verr.Issues) > 0 {
		return nil, verr
	}

	p.input = in
	return p, nil
}

// Clone 深拷贝输入记录
func (in ProblemInput) Clone() ProblemInput {
	out := in
	out.Employees = slices.Clone(in.Employees)
	out.Shifts = slices.Clone(in.Shifts)
	out.ShiftOverrides = slices.Clone(in.ShiftOverrides)
	out.Demand = slices.Clone(in.Demand)
	out.Availability = make([]AvailabilitySlot, len(in.Availability))
	for i, slot := range in.Availability {
		if slot.PreferenceWeight != nil {
			w := *slot.PreferenceWeight
			slot.PreferenceWeight = &w
		}
		out.Availability[i] = slot
	}
	return out
}

// Input 返回输入记录的深拷贝，可以在其基础上构造新的 Problem
func (p *Problem) Input() ProblemInput {
	return p.input.Clone()
}

func (p *Problem) Horizon() Horizon {
	return p.input.Horizon
}

func (p *Problem) DefaultAvailability() AvailabilityPolicy {
	return p.input.DefaultAvailability
}

func (p *Problem) NumDays() int {
	return len(p.days)
}

func (p *Problem) Date(day int) time.Time {
	return p.days[day]
}

func (p *Problem) NumEmployees() int {
	return len(p.employees)
}

func (p *Problem) Employee(i int) Employee {
	return p.employees[i]
}

func (p *Problem) EmployeeIndex(id string) (int, bool) {
	i, ok := p.employeeIndex[id]
	return i, ok
}

func (p *Problem) Employees() []Employee {
	return slices.Clone(p.employees)
}

func (p *Problem) NumShifts() int {
	return len(p.shifts)
}

func (p *Problem) Shift(i int) Shift {
	return p.shifts[i]
}

func (p *Problem) ShiftIndex(name string) (int, bool) {
	i, ok := p.shiftIndex[name]
	return i, ok
}

// Hours 某天某班次的时长（已考虑覆盖）
func (p *Problem) Hours(day int, shift int) float64 {
	return p.hours[day][shift]
}

func (p *Problem) Slot(key SlotKey) (AvailabilitySlot, bool) {
	slot, ok := p.slots[key]
	return slot, ok
}

// Eligible 员工是否可以被排到这一天的这个班次
func (p *Problem) Eligible(key SlotKey) bool {
	if slot, ok := p.slots[key]; ok {
		return slot.Available
	}
	return p.input.DefaultAvailability == AvailabilityAvailable
}

// Preference 返回员工对这个班次声明的偏好权重
func (p *Problem) Preference(key SlotKey) (float64, bool) {
	slot, ok := p.slots[key]
	if !ok || !slot.Available || slot.PreferenceWeight == nil {
		return 0, false
	}
	return *slot.PreferenceWeight, true
}

func (p *Problem) Demand(day int, shift int, role Role) int {
	return p.demand[DemandKey{Day: day, Shift: shift, Role: role}]
}

// HasSupervisors 名单中是否有主管
func (p *Problem) HasSupervisors() bool {
	for _, e := range p.employees {
		if e.Role == RoleSupervisor {
			return true
		}
	}
	return false
}

func (p *Problem) String() string {
	return fmt.Sprintf("Problem{%s~%s, %d 名员工, %d 个班次, %d 条需求}",
		FormatDate(p.input.Horizon.Start), FormatDate(p.input.Horizon.End),
		len(p.employees), len(p.shifts), len(p.demand))
}
