package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// ReplaceDemand 用新的记录整体替换排班计划下的人员需求
func (r *Repository) ReplaceDemand(schedulePlanID int64, demand []*domain.DemandRequirement) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `DELETE FROM demand_requirements WHERE schedule_plan_id = $1`
	if _, err := tx.ExecContext(ctx, query, schedulePlanID); err != nil {
		return err
	}

	query = `
		INSERT INTO demand_requirements (schedule_plan_id, date, shift_name, role, required_headcount)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, d := range demand {
		params := []any{schedulePlanID, domain.Day(d.Date), d.Shift, d.Role, d.RequiredHeadcount}
		if _, err := tx.ExecContext(ctx, query, params...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetDemandBySchedulePlanID(schedulePlanID int64) ([]*domain.DemandRequirement, error) {
	query := `
		SELECT date, shift_name, role, required_headcount
		FROM demand_requirements
		WHERE schedule_plan_id = $1
		ORDER BY date, shift_name, role
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, schedulePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	demand := make([]*domain.DemandRequirement, 0)
	for rows.Next() {
		d := &domain.DemandRequirement{}
		if err := rows.Scan(&d.Date, &d.Shift, &d.Role, &d.RequiredHeadcount); err != nil {
			return nil, err
		}
		demand = append(demand, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return demand, nil
}
