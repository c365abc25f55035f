package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

type SolveStatus string

const (
	StatusOptimal            SolveStatus = "Optimal"
	StatusFeasible           SolveStatus = "Feasible"
	StatusInfeasible         SolveStatus = "Infeasible"
	StatusTimedOutNoSolution SolveStatus = "TimedOutNoSolution"
)

// HasSolution 是否带有可用的排班
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

type ConstraintFamily string

const (
	FamilyCoverage       ConstraintFamily = "coverage"
	FamilySupervisor     ConstraintFamily = "supervisor_presence"
	FamilyOneShiftPerDay ConstraintFamily = "one_shift_per_day"
	FamilyWeeklyHoursCap ConstraintFamily = "weekly_hours_cap"
	FamilyOvertimeCap    ConstraintFamily = "overtime_cap"
)

type Assignment struct {
	EmployeeID string    `json:"employeeID"`
	Date       time.Time `json:"date"`
	Shift      string    `json:"shift"`
	Role       Role      `json:"role"`
	Hours      float64   `json:"hours"`
}

// CoverageEntry 某条需求的满足情况，Ratio 不截断
type CoverageEntry struct {
	Date     time.Time `json:"date"`
	Shift    string    `json:"shift"`
	Role     Role      `json:"role"`
	Required int       `json:"required"`
	Assigned int       `json:"assigned"`
	Ratio    float64   `json:"ratio"`
}

// DisplayRatio 用于展示的覆盖率，超额时显示为 100%+
func (c CoverageEntry) DisplayRatio() string {
	if c.Ratio > 1 {
		return "100%+"
	}
	return fmt.Sprintf("%.0f%%", c.Ratio*100)
}

type Metrics struct {
	// Objective = TotalCost + PenaltyCost - PreferenceBonus
	Objective          float64            `json:"objective"`
	TotalCost          float64            `json:"totalCost"`
	PenaltyCost        float64            `json:"penaltyCost"`
	PreferenceBonus    float64            `json:"preferenceBonus"`
	TotalHours         float64            `json:"totalHours"`
	OvertimeHoursTotal float64            `json:"overtimeHoursTotal"`
	OvertimeByEmployee map[string]float64 `json:"overtimeByEmployee"`
	HoursByEmployee    map[string]float64 `json:"hoursByEmployee"`
	Coverage           []CoverageEntry    `json:"coverage"`
	OverallCoverage    float64            `json:"overallCoverage"`
	UnmetDemand        int                `json:"unmetDemand"`
	PreferenceMatches  int                `json:"preferenceMatches"`
	AvgStaffPerDay     float64            `json:"avgStaffPerDay"`
	EmployeesScheduled int                `json:"employeesScheduled"`
}

// SolveInfo 求解过程的信息，不属于排班结果本身
type SolveInfo struct {
	WallTime  time.Duration `json:"wallTime"`
	Nodes     int64         `json:"nodes"`
	BestBound float64       `json:"bestBound"`
	Gap       float64       `json:"gap"`
	Cancelled bool          `json:"cancelled"`
	CacheHit  bool          `json:"cacheHit"`
}

// Schedule 一次求解的完整结果，生成后不再修改
type Schedule struct {
	Status      SolveStatus        `json:"status"`
	Assignments []Assignment       `json:"assignments"`
	Metrics     Metrics            `json:"metrics"`
	Relaxed     []ConstraintFamily `json:"relaxed"`
	Fingerprint string             `json:"fingerprint"`
	SolveInfo   SolveInfo          `json:"solveInfo"`
}

// Clone 深拷贝，缓存中保存和返回的都是副本
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	out := *s
	out.Assignments = slices.Clone(s.Assignments)
	out.Relaxed = slices.Clone(s.Relaxed)
	out.Metrics.Coverage = slices.Clone(s.Metrics.Coverage)
	out.Metrics.OvertimeByEmployee = maps.Clone(s.Metrics.OvertimeByEmployee)
	out.Metrics.HoursByEmployee = maps.Clone(s.Metrics.HoursByEmployee)
	return &out
}
