package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// InsertSchedulingResult 保存排班结果，每个排班计划只保留最新的一份
func (r *Repository) InsertSchedulingResult(result *domain.SchedulingResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	schedule, err := json.Marshal(result.Schedule)
	if err != nil {
		return err
	}

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的排班结果删除
	query := `DELETE FROM scheduling_results WHERE schedule_plan_id = $1`
	if _, err := tx.ExecContext(ctx, query, result.SchedulePlanID); err != nil {
		return err
	}

	query = `
		INSERT INTO scheduling_results (schedule_plan_id, source, status, fingerprint, schedule)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	params := []any{
		result.SchedulePlanID,
		result.Source,
		result.Schedule.Status,
		result.Schedule.Fingerprint,
		schedule,
	}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&result.ID, &result.CreatedAt, &result.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSchedulingResultBySchedulePlanID(schedulePlanID int64) (*domain.SchedulingResult, error) {
	query := `
		SELECT id, source, schedule, created_at, version
		FROM scheduling_results
		WHERE schedule_plan_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result := &domain.SchedulingResult{
		SchedulePlanID: schedulePlanID,
	}

	var schedule []byte
	dst := []any{&result.ID, &result.Source, &schedule, &result.CreatedAt, &result.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, schedulePlanID).Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(schedule, &result.Schedule); err != nil {
		return nil, err
	}

	return result, nil
}
