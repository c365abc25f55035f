package repository

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Database.TransactionTimeout = 5
	return NewRepository(cfg, db), mock
}

func mustDate(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGetSchedulePlanByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery("FROM schedule_plans").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "horizon_start", "horizon_end", "shift_template_id", "default_availability", "created_at", "version"}).
			AddRow("三月", "", mustDate("2024-03-04"), mustDate("2024-03-10"), int64(1), "available", now, int32(2)))

	plan, err := repo.GetSchedulePlanByID(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), plan.ID)
	assert.Equal(t, domain.AvailabilityAvailable, plan.DefaultAvailability)
	assert.Equal(t, 7, plan.Horizon().NumDays())
	assert.Equal(t, int32(2), plan.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSchedulePlanByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM schedule_plans").
		WithArgs(int64(3)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSchedulePlanByID(3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEmployeesRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	employees := []*domain.Employee{
		{ID: "EMP001", Role: domain.RoleFrontLine, HourlyWage: 15, WeeklyHoursCap: 40, EmploymentClass: domain.EmploymentFullTime},
		{ID: "EMP002", Role: domain.RoleStock, HourlyWage: 14, WeeklyHoursCap: 30, EmploymentClass: domain.EmploymentPartTime},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO employees").
		WithArgs("EMP001", "", domain.RoleFrontLine, 15.0, 40, domain.EmploymentFullTime).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "version"}).AddRow(now, int32(1)))
	mock.ExpectQuery("INSERT INTO employees").
		WithArgs("EMP002", "", domain.RoleStock, 14.0, 30, domain.EmploymentPartTime).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.UpsertEmployees(employees)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAvailability(t *testing.T) {
	repo, mock := newMockRepository(t)
	weight := 2.0

	slots := []*domain.AvailabilitySlot{
		{EmployeeID: "EMP001", Date: mustDate("2024-03-04"), Shift: "day", Available: true, PreferenceWeight: &weight},
		{EmployeeID: "EMP002", Date: mustDate("2024-03-04"), Shift: "day", Available: false},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_slots").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs(int64(5), "EMP001", mustDate("2024-03-04"), "day", true, &weight).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs(int64(5), "EMP002", mustDate("2024-03-04"), "day", false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceAvailability(5, slots))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailabilityNullPreference(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM availability_slots").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"employee_id", "date", "shift_name", "available", "preference_weight"}).
			AddRow("EMP001", mustDate("2024-03-04"), "day", true, 1.5).
			AddRow("EMP002", mustDate("2024-03-04"), "day", false, nil))

	slots, err := repo.GetAvailabilityBySchedulePlanID(5)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.NotNil(t, slots[0].PreferenceWeight)
	assert.Equal(t, 1.5, *slots[0].PreferenceWeight)
	assert.Nil(t, slots[1].PreferenceWeight)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDemand(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM demand_requirements").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO demand_requirements").
		WithArgs(int64(5), mustDate("2024-03-04"), "day", domain.RoleSupervisor, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceDemand(5, []*domain.DemandRequirement{
		{Date: mustDate("2024-03-04"), Shift: "day", Role: domain.RoleSupervisor, RequiredHeadcount: 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedulingResultRoundTrip(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	schedule := domain.Schedule{
		Status: domain.StatusOptimal,
		Assignments: []domain.Assignment{
			{EmployeeID: "EMP001", Date: mustDate("2024-03-04"), Shift: "day", Role: domain.RoleFrontLine, Hours: 8},
		},
		Relaxed:     []domain.ConstraintFamily{},
		Fingerprint: "00000000deadbeef",
	}
	encoded, err := json.Marshal(schedule)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scheduling_results").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO scheduling_results").
		WithArgs(int64(5), domain.SourceGenerated, domain.StatusOptimal, "00000000deadbeef", encoded).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "version"}).AddRow(int64(9), now, int32(1)))
	mock.ExpectCommit()

	result := &domain.SchedulingResult{SchedulePlanID: 5, Source: domain.SourceGenerated, Schedule: schedule}
	require.NoError(t, repo.InsertSchedulingResult(result))
	assert.Equal(t, int64(9), result.ID)

	mock.ExpectQuery("FROM scheduling_results").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "schedule", "created_at", "version"}).
			AddRow(int64(9), "generated", encoded, now, int32(1)))

	got, err := repo.GetSchedulingResultBySchedulePlanID(5)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGenerated, got.Source)
	assert.Equal(t, schedule.Assignments, got.Schedule.Assignments)
	assert.Equal(t, domain.StatusOptimal, got.Schedule.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShiftTemplateByIDSortsShifts(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery("FROM shift_templates").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at", "version", "id", "name", "start_time", "end_time"}).
			AddRow("默认", "", now, int32(1), int64(2), "evening", "16:00:00", "22:00:00").
			AddRow("默认", "", now, int32(1), int64(1), "morning", "08:00:00", "16:00:00"))

	st, err := repo.GetShiftTemplateByID(1)
	require.NoError(t, err)
	require.Len(t, st.Shifts, 2)
	assert.Equal(t, "morning", st.Shifts[0].Name)
	assert.Equal(t, "evening", st.Shifts[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShiftTemplateByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM shift_templates").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at", "version", "id", "name", "start_time", "end_time"}))

	_, err := repo.GetShiftTemplateByID(1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
