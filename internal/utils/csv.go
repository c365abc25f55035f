package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// csvTable 带表头的 CSV，按列名取值
type csvTable struct {
	reader *csv.Reader
	cols   map[string]int
	line   int
}

func newCSVTable(r io.Reader, required ...string) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV 文件为空")
		}
		return nil, fmt.Errorf("无法读取 CSV 表头: %w", err)
	}

	t := &csvTable{reader: reader, cols: make(map[string]int, len(header)), line: 1}
	for i, h := range header {
		t.cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("CSV 缺少列 %q", col)
		}
	}
	return t, nil
}

// next 读取下一行，文件结束时返回 nil, nil
func (t *csvTable) next() ([]string, error) {
	record, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	t.line++
	if err != nil {
		return nil, fmt.Errorf("第 %d 行: %w", t.line, err)
	}
	return record, nil
}

func (t *csvTable) get(record []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (t *csvTable) errorf(format string, args ...any) error {
	return fmt.Errorf("第 %d 行: %s", t.line, fmt.Sprintf(format, args...))
}

func (t *csvTable) number(record []string, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.get(record, col), 64)
	if err != nil {
		return 0, t.errorf("%s 不是合法的数字", col)
	}
	return v, nil
}

func (t *csvTable) integer(record []string, col string) (int, error) {
	v, err := strconv.Atoi(t.get(record, col))
	if err != nil {
		return 0, t.errorf("%s 不是合法的整数", col)
	}
	return v, nil
}

func (t *csvTable) date(record []string, col string) (time.Time, error) {
	v, err := domain.ParseDate(t.get(record, col))
	if err != nil {
		return time.Time{}, t.errorf("%s 不是合法的日期（格式为 %s）", col, domain.DateLayout)
	}
	return v, nil
}

// ParseEmployeesCSV 列: id,name,role,hourly_wage,weekly_hours_cap,employment_class
func ParseEmployeesCSV(r io.Reader) ([]domain.Employee, error) {
	t, err := newCSVTable(r, "id", "role", "hourly_wage", "weekly_hours_cap")
	if err != nil {
		return nil, err
	}

	employees := make([]domain.Employee, 0)
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return employees, nil
		}

		wage, err := t.number(record, "hourly_wage")
		if err != nil {
			return nil, err
		}
		hoursCap, err := t.integer(record, "weekly_hours_cap")
		if err != nil {
			return nil, err
		}
		class := domain.EmploymentClass(t.get(record, "employment_class"))
		if class == "" {
			class = domain.EmploymentFullTime
		}

		employees = append(employees, domain.Employee{
			ID:              t.get(record, "id"),
			Name:            t.get(record, "name"),
			Role:            domain.Role(t.get(record, "role")),
			HourlyWage:      wage,
			WeeklyHoursCap:  hoursCap,
			EmploymentClass: class,
		})
	}
}

// ParseDemandCSV 列: date,shift,role,required_headcount
func ParseDemandCSV(r io.Reader) ([]domain.DemandRequirement, error) {
	t, err := newCSVTable(r, "date", "shift", "role", "required_headcount")
	if err != nil {
		return nil, err
	}

	demand := make([]domain.DemandRequirement, 0)
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return demand, nil
		}

		date, err := t.date(record, "date")
		if err != nil {
			return nil, err
		}
		required, err := t.integer(record, "required_headcount")
		if err != nil {
			return nil, err
		}

		demand = append(demand, domain.DemandRequirement{
			Date:              date,
			Shift:             t.get(record, "shift"),
			Role:              domain.Role(t.get(record, "role")),
			RequiredHeadcount: required,
		})
	}
}

// ParseAvailabilityCSV 列: employee_id,date,shift,available,preference_weight（可为空）
func ParseAvailabilityCSV(r io.Reader) ([]domain.AvailabilitySlot, error) {
	t, err := newCSVTable(r, "employee_id", "date", "shift", "available")
	if err != nil {
		return nil, err
	}

	slots := make([]domain.AvailabilitySlot, 0)
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return slots, nil
		}

		date, err := t.date(record, "date")
		if err != nil {
			return nil, err
		}
		available, err := strconv.ParseBool(t.get(record, "available"))
		if err != nil {
			return nil, t.errorf("available 只能是 true 或 false")
		}

		slot := domain.AvailabilitySlot{
			EmployeeID: t.get(record, "employee_id"),
			Date:       date,
			Shift:      t.get(record, "shift"),
			Available:  available,
		}
		if t.get(record, "preference_weight") != "" {
			w, err := t.number(record, "preference_weight")
			if err != nil {
				return nil, err
			}
			slot.PreferenceWeight = &w
		}
		slots = append(slots, slot)
	}
}

// ParseShiftsCSV 列: name,duration_hours
func ParseShiftsCSV(r io.Reader) ([]domain.Shift, error) {
	t, err := newCSVTable(r, "name", "duration_hours")
	if err != nil {
		return nil, err
	}

	shifts := make([]domain.Shift, 0)
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return shifts, nil
		}

		hours, err := t.number(record, "duration_hours")
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, domain.Shift{Name: t.get(record, "name"), DurationHours: hours})
	}
}

// WriteAssignmentsCSV 列: date,shift,employee_id,role,hours
func WriteAssignmentsCSV(w io.Writer, assignments []domain.Assignment) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "shift", "employee_id", "role", "hours"}); err != nil {
		return err
	}
	for _, a := range assignments {
		record := []string{
			domain.FormatDate(a.Date),
			a.Shift,
			a.EmployeeID,
			string(a.Role),
			strconv.FormatFloat(a.Hours, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
