package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// ReplaceAvailability 用新的记录整体替换排班计划下的可用性
func (r *Repository) ReplaceAvailability(schedulePlanID int64, slots []*domain.AvailabilitySlot) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `DELETE FROM availability_slots WHERE schedule_plan_id = $1`
	if _, err := tx.ExecContext(ctx, query, schedulePlanID); err != nil {
		return err
	}

	query = `
		INSERT INTO availability_slots (schedule_plan_id, employee_id, date, shift_name, available, preference_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, slot := range slots {
		params := []any{
			schedulePlanID,
			slot.EmployeeID,
			domain.Day(slot.Date),
			slot.Shift,
			slot.Available,
			slot.PreferenceWeight,
		}
		if _, err := tx.ExecContext(ctx, query, params...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAvailabilityBySchedulePlanID(schedulePlanID int64) ([]*domain.AvailabilitySlot, error) {
	query := `
		SELECT employee_id, date, shift_name, available, preference_weight
		FROM availability_slots
		WHERE schedule_plan_id = $1
		ORDER BY date, shift_name, employee_id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, schedulePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]*domain.AvailabilitySlot, 0)
	for rows.Next() {
		slot := &domain.AvailabilitySlot{}
		dst := []any{&slot.EmployeeID, &slot.Date, &slot.Shift, &slot.Available, &slot.PreferenceWeight}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}
