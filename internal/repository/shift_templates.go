package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func (r *Repository) GetAllShiftTemplates() ([]*domain.ShiftTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT 
			st.id,
			st.name,
			st.description,
			st.created_at,
			st.version,
			sts.id,
			sts.name,
			sts.start_time,
			sts.end_time
		FROM shift_templates st
		LEFT JOIN shift_template_shifts sts ON st.id = sts.template_id
		ORDER BY st.id, sts.start_time
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templatesMap := make(map[int64]*domain.ShiftTemplate)
	order := make([]int64, 0)

	for rows.Next() {
		var row struct {
			ID          int64
			Name        string
			Description string
			CreatedAt   time.Time
			Version     int32

			ShiftID   sql.NullInt64
			ShiftName sql.NullString
			StartTime sql.NullString
			EndTime   sql.NullString
		}

		dst := []any{
			&row.ID,
			&row.Name,
			&row.Description,
			&row.CreatedAt,
			&row.Version,
			&row.ShiftID,
			&row.ShiftName,
			&row.StartTime,
			&row.EndTime,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		template, exists := templatesMap[row.ID]
		if !exists {
			// 说明此时是第一次查到这个 template，需要在 map 中初始化这个 template
			template = &domain.ShiftTemplate{
				ID:          row.ID,
				Name:        row.Name,
				Description: row.Description,
				Shifts:      make([]domain.ShiftTemplateShift, 0),
				CreatedAt:   row.CreatedAt,
				Version:     row.Version,
			}
			templatesMap[row.ID] = template
			order = append(order, row.ID)
		}

		// 如果 shiftID 为空，则表示这个模板不存在任何的班次
		if !row.ShiftID.Valid {
			continue
		}

		template.Shifts = append(template.Shifts, domain.ShiftTemplateShift{
			ID:        row.ShiftID.Int64,
			Name:      row.ShiftName.String,
			StartTime: row.StartTime.String,
			EndTime:   row.EndTime.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	templates := make([]*domain.ShiftTemplate, 0, len(order))
	for _, id := range order {
		templates = append(templates, templatesMap[id])
	}

	return templates, nil
}

func (r *Repository) CreateShiftTemplate(st *domain.ShiftTemplate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO shift_templates (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, st.Name, st.Description).Scan(&st.ID, &st.CreatedAt, &st.Version); err != nil {
		return err
	}

	for i := range st.Shifts {
		query = `
			INSERT INTO shift_template_shifts (template_id, name, start_time, end_time)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		params := []any{st.ID, st.Shifts[i].Name, st.Shifts[i].StartTime, st.Shifts[i].EndTime}
		if err := tx.QueryRowContext(ctx, query, params...).Scan(&st.Shifts[i].ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetShiftTemplateByID(id int64) (*domain.ShiftTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT
			st.name,
			st.description,
			st.created_at,
			st.version,
			sts.id,
			sts.name,
			sts.start_time,
			sts.end_time
		FROM shift_templates st
		LEFT JOIN shift_template_shifts sts ON st.id = sts.template_id
		WHERE st.id = $1
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &domain.ShiftTemplate{
		ID:     id,
		Shifts: make([]domain.ShiftTemplateShift, 0),
	}
	found := false

	for rows.Next() {
		var row struct {
			Name        string
			Description string
			CreatedAt   time.Time
			Version     int32

			ShiftID   sql.NullInt64
			ShiftName sql.NullString
			StartTime sql.NullString
			EndTime   sql.NullString
		}

		dst := []any{
			&row.Name,
			&row.Description,
			&row.CreatedAt,
			&row.Version,
			&row.ShiftID,
			&row.ShiftName,
			&row.StartTime,
			&row.EndTime,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if !found {
			found = true
			st.Name = row.Name
			st.Description = row.Description
			st.CreatedAt = row.CreatedAt
			st.Version = row.Version
		}

		if !row.ShiftID.Valid {
			// 说明该模板不存在任何班次
			continue
		}

		st.Shifts = append(st.Shifts, domain.ShiftTemplateShift{
			ID:        row.ShiftID.Int64,
			Name:      row.ShiftName.String,
			StartTime: row.StartTime.String,
			EndTime:   row.EndTime.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, sql.ErrNoRows
	}

	// 班次按开始时间排序，求解时班次的顺序决定结果的排列顺序
	sort.SliceStable(st.Shifts, func(i, j int) bool {
		return st.Shifts[i].StartTime < st.Shifts[j].StartTime
	})

	return st, nil
}

func (r *Repository) UpdateShiftTemplate(st *domain.ShiftTemplate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE shift_templates
		SET 
			name = $1, 
			description = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`

	params := []any{st.Name, st.Description, st.ID, st.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&st.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteShiftTemplate(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		DELETE FROM shift_templates WHERE id = $1
	`

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
