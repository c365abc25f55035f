package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func (r *Repository) GetAllEmployees() ([]*domain.Employee, error) {
	query := `
		SELECT id, name, role, hourly_wage, weekly_hours_cap, employment_class, created_at, version
		FROM employees
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		e := &domain.Employee{}
		dst := []any{&e.ID, &e.Name, &e.Role, &e.HourlyWage, &e.WeeklyHoursCap, &e.EmploymentClass, &e.CreatedAt, &e.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) GetEmployeeByID(id string) (*domain.Employee, error) {
	query := `
		SELECT name, role, hourly_wage, weekly_hours_cap, employment_class, created_at, version
		FROM employees WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	e := &domain.Employee{
		ID: id,
	}

	dst := []any{&e.Name, &e.Role, &e.HourlyWage, &e.WeeklyHoursCap, &e.EmploymentClass, &e.CreatedAt, &e.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return e, nil
}

const upsertEmployeeQuery = `
	INSERT INTO employees (id, name, role, hourly_wage, weekly_hours_cap, employment_class)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		role = EXCLUDED.role,
		hourly_wage = EXCLUDED.hourly_wage,
		weekly_hours_cap = EXCLUDED.weekly_hours_cap,
		employment_class = EXCLUDED.employment_class,
		version = employees.version + 1
	RETURNING created_at, version
`

// UpsertEmployees 在一个事务中新增或更新员工，CSV 导入时使用
func (r *Repository) UpsertEmployees(employees []*domain.Employee) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range employees {
		params := []any{e.ID, e.Name, e.Role, e.HourlyWage, e.WeeklyHoursCap, e.EmploymentClass}
		if err := tx.QueryRowContext(ctx, upsertEmployeeQuery, params...).Scan(&e.CreatedAt, &e.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteEmployee(id string) error {
	query := `
		DELETE FROM employees WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
