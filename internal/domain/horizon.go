package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// 规划周期的最大天数
const MaxHorizonDays = 366

// Horizon 规划周期，Start 和 End 均包含在内
type Horizon struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// Day 取 t 在其自身时区下的日期，统一为 UTC 零点
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期 %q 格式错误，应为 %s", s, DateLayout)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// NumDays 周期包含的天数，End 早于 Start 时为 0
func (h Horizon) NumDays() int {
	start, end := Day(h.Start), Day(h.End)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func (h Horizon) Days() []time.Time {
	n := h.NumDays()
	days := make([]time.Time, n)
	start := Day(h.Start)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// Index 返回日期在周期中的下标
func (h Horizon) Index(t time.Time) (int, bool) {
	start, day := Day(h.Start), Day(t)
	if day.Before(start) {
		return 0, false
	}
	i := int(day.Sub(start).Hours() / 24)
	if i >= h.NumDays() {
		return 0, false
	}
	return i, true
}

func (h Horizon) Contains(t time.Time) bool {
	_, ok := h.Index(t)
	return ok
}

// RollingWindows 返回周期内所有连续 7 天窗口 [start, end)；周期不足 7 天时只有一个窗口
func RollingWindows(numDays int) [][2]int {
	if numDays <= 0 {
		return nil
	}
	if numDays <= 7 {
		return [][2]int{{0, numDays}}
	}
	windows := make([][2]int, 0, numDays-6)
	for start := 0; start+7 <= numDays; start++ {
		windows = append(windows, [2]int{start, start + 7})
	}
	return windows
}

// CalendarWeeks 按自然周（周一开始）对周期内的日期下标分组，首尾两周可能不完整
func (h Horizon) CalendarWeeks() [][]int {
	var weeks [][]int
	var current time.Time
	for i, day := range h.Days() {
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		if len(weeks) == 0 || !monday.Equal(current) {
			weeks = append(weeks, nil)
			current = monday
		}
		weeks[len(weeks)-1] = append(weeks[len(weeks)-1], i)
	}
	return weeks
}
