package snapshot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"safety-rating/internal/common/database"
	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src := NewPostgresSource(&database.PostgresClient{DB: db}, 90, logger.NewTestLogger(t))
	src.now = func() time.Time { return testNow }
	return src, mock
}

func TestCompanySnapshot(t *testing.T) {
	src, mock := newTestSource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT p.id, p.name, p.job_type").
		WithArgs("company-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "job_type", "work_sessions", "inspected_sessions"}).
			AddRow("p1", "Tower A", "elevation", int64(4), int64(4)).
			AddRow("p2", "Plaza", "pressure_washing", int64(2), int64(1)))
	mock.ExpectQuery("FROM project_documents pd").
		WithArgs("company-1").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "document_type"}).
			AddRow("p1", "FLHA").
			AddRow("p1", "Toolbox Meeting").
			AddRow("p2", "FLHA").
			AddRow("p9", "FLHA"))
	mock.ExpectQuery("SELECT DISTINCT document_type FROM company_documents").
		WithArgs("company-1").
		WillReturnRows(sqlmock.NewRows([]string{"document_type"}).
			AddRow("Company Policy").
			AddRow("Health & Safety Manual"))
	mock.ExpectQuery("FROM employees e WHERE e.company_id = \\$1 AND e.status = 'active'").
		WithArgs("company-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "required_documents", "signed_documents"}).
			AddRow("e1", "Ana", int64(2), int64(2)).
			AddRow("e2", "Ben", int64(2), int64(0)))
	mock.ExpectCommit()

	snap, err := src.CompanySnapshot(context.Background(), "company-1")
	require.NoError(t, err)

	assert.Equal(t, "company-1", snap.CompanyID)
	require.Len(t, snap.Projects, 2)
	assert.Equal(t, []string{"FLHA", "Toolbox Meeting"}, snap.Projects[0].Documents)
	assert.Equal(t, 1, snap.Projects[1].InspectedSessions)
	assert.Equal(t, []string{"Company Policy", "Health & Safety Manual"}, snap.CompanyDocuments)
	require.Len(t, snap.Employees, 2)
	assert.Equal(t, 0, snap.Employees[1].SignedDocuments)
	assert.Equal(t, testNow, snap.CapturedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeSnapshots(t *testing.T) {
	src, mock := newTestSource(t)
	expires := testNow.Add(10 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("AS recent_inspections").
		WithArgs("company-1", testNow.Add(-90*24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active", "recent_inspections", "quizzes_passed", "quizzes_total", "work_sessions", "incidents"}).
			AddRow("e1", "Ana", true, int64(6), int64(3), int64(4), int64(12), int64(0)).
			AddRow("e2", "Ben", false, int64(0), int64(0), int64(0), int64(0), int64(1)))
	mock.ExpectQuery("FROM certifications c").
		WithArgs("company-1").
		WillReturnRows(sqlmock.NewRows([]string{"employee_id", "name", "expires_at"}).
			AddRow("e1", "IRATA L1", expires).
			AddRow("e1", "First Aid", nil))
	mock.ExpectCommit()

	employees, err := src.EmployeeSnapshots(context.Background(), "company-1")
	require.NoError(t, err)
	require.Len(t, employees, 2)

	assert.True(t, employees[0].Active)
	assert.False(t, employees[1].Active)
	assert.Equal(t, 6, employees[0].RecentInspections)
	require.Len(t, employees[0].Certifications, 2)
	assert.Equal(t, expires, *employees[0].Certifications[0].ExpiresAt)
	assert.Nil(t, employees[0].Certifications[1].ExpiresAt)
	assert.Equal(t, 1, employees[1].Incidents)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanySnapshot_QueryFailure(t *testing.T) {
	src, mock := newTestSource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT p.id, p.name, p.job_type").WillReturnError(fmt.Errorf("connection reset by peer"))
	mock.ExpectRollback()

	_, err := src.CompanySnapshot(context.Background(), "company-1")
	require.Error(t, err)

	std := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeSnapshotUnavailable, std.Code)
	assert.Contains(t, std.Details, "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeSnapshots_BeginFailure(t *testing.T) {
	src, mock := newTestSource(t)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("too many connections"))

	_, err := src.EmployeeSnapshots(context.Background(), "company-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSnapshotUnavailable, apperrors.Normalize(err).Code)
}

func TestCompanySnapshot_Timeout(t *testing.T) {
	src, mock := newTestSource(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)

	_, err := src.CompanySnapshot(ctx, "company-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSnapshotTimeout, apperrors.Normalize(err).Code)
}
