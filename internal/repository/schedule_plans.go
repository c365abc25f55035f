package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func (r *Repository) GetAllSchedulePlans() ([]*domain.SchedulePlan, error) {
	query := `
		SELECT 
			id, 
			name, 
			description, 
			horizon_start, 
			horizon_end, 
			shift_template_id,
			default_availability,
			created_at, 
			version
		FROM schedule_plans
		ORDER BY horizon_start DESC, id DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []*domain.SchedulePlan{}
	for rows.Next() {
		var plan domain.SchedulePlan
		dst := []any{
			&plan.ID,
			&plan.Name,
			&plan.Description,
			&plan.HorizonStart,
			&plan.HorizonEnd,
			&plan.ShiftTemplateID,
			&plan.DefaultAvailability,
			&plan.CreatedAt,
			&plan.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		plans = append(plans, &plan)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *Repository) CreateSchedulePlan(plan *domain.SchedulePlan) error {
	query := `
		INSERT INTO schedule_plans (
			name,
			description,
			horizon_start,
			horizon_end,
			shift_template_id,
			default_availability
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	params := []any{
		plan.Name,
		plan.Description,
		plan.HorizonStart,
		plan.HorizonEnd,
		plan.ShiftTemplateID,
		plan.DefaultAvailability,
	}
	dst := []any{&plan.ID, &plan.CreatedAt, &plan.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSchedulePlanByID(id int64) (*domain.SchedulePlan, error) {
	query := `
		SELECT 
			name, 
			description, 
			horizon_start, 
			horizon_end, 
			shift_template_id,
			default_availability,
			created_at, 
			version
		FROM schedule_plans
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	plan := &domain.SchedulePlan{
		ID: id,
	}

	dst := []any{
		&plan.Name,
		&plan.Description,
		&plan.HorizonStart,
		&plan.HorizonEnd,
		&plan.ShiftTemplateID,
		&plan.DefaultAvailability,
		&plan.CreatedAt,
		&plan.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return plan, nil
}

func (r *Repository) UpdateSchedulePlan(plan *domain.SchedulePlan) error {
	// 不允许更换班次模板，否则已经录入的可用性和需求中的班次名称会失效
	query := `
		UPDATE schedule_plans 
		SET
			name = $1,
			description = $2,
			horizon_start = $3,
			horizon_end = $4,
			default_availability = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	params := []any{
		plan.Name,
		plan.Description,
		plan.HorizonStart,
		plan.HorizonEnd,
		plan.DefaultAvailability,
		plan.ID,
		plan.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&plan.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteSchedulePlan(id int64) error {
	query := `
		DELETE FROM schedule_plans WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
