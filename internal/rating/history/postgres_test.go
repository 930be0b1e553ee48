package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyColumns = []string{"id", "company_id", "previous_score", "new_score", "delta", "category", "reason", "created_at"}

func TestPostgresStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO csr_history").
		WithArgs("entry-1", "company-1", 70.0, 80.0, 10.0, "overall", "Documents uploaded", created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPostgresStore(db)
	err = store.Append(context.Background(), Entry{
		ID: "entry-1", CompanyID: "company-1", PreviousScore: 70, NewScore: 80, Delta: 10,
		Category: "overall", Reason: "Documents uploaded", CreatedAt: created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM csr_history").
		WithArgs("company-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	entry, err := NewPostgresStore(db).Latest(context.Background(), "company-1", "overall")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListNewestFirstWithNullTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(historyColumns).
		AddRow("e2", "company-1", 60.0, 75.0, 15.0, "overall", "Policy uploaded", newer).
		AddRow("e1", "company-1", 0.0, 60.0, 60.0, "initial", "Imported", nil)

	mock.ExpectQuery("SELECT (.+) FROM csr_history WHERE company_id = \\$1 ORDER BY").
		WithArgs("company-1", 25).
		WillReturnRows(rows)

	entries, err := NewPostgresStore(db).List(context.Background(), "company-1", 25)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, newer, entries[0].CreatedAt)
	assert.True(t, entries[1].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM csr_history").WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewPostgresStore(db).List(context.Background(), "company-1", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func newSQLRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock, time.Time) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(NewPostgresStore(db), nil, logger.NewTestLogger(t))
	r.now = func() time.Time { return now }
	r.newID = func() string { return "entry-1" }
	return r, mock, now
}

func TestRecorder_PostgresAppendsUnderCompanyLock(t *testing.T) {
	r, mock, now := newSQLRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("company-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM csr_history").WithArgs("company-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(historyColumns))
	mock.ExpectQuery("SELECT (.+) FROM csr_history").WithArgs("company-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(historyColumns))
	mock.ExpectExec("INSERT INTO csr_history").
		WithArgs("entry-1", "company-1", 40.0, 90.0, 50.0, "overall", "Policy uploaded", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := r.RecordIfChanged(context.Background(), RecordRequest{
		CompanyID: "company-1", PreviousScore: 40, NewScore: 90,
		Category: CategoryOverall, Reason: "Policy uploaded",
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "entry-1", entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A second reader that waited on the lock sees the row the first committed.
func TestRecorder_PostgresSkipsChangeCommittedWhileWaiting(t *testing.T) {
	r, mock, now := newSQLRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("company-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM csr_history").WithArgs("company-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("entry-0", "company-1", 40.0, 90.0, 50.0, "overall", "Policy uploaded", now))
	mock.ExpectCommit()

	entry, err := r.RecordIfChanged(context.Background(), RecordRequest{
		CompanyID: "company-1", PreviousScore: 40, NewScore: 90,
		Category: CategoryOverall, Reason: "Policy uploaded",
	})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_PostgresLockFailure(t *testing.T) {
	r, mock, _ := newSQLRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("company-1").
		WillReturnError(fmt.Errorf("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	_, err := r.RecordIfChanged(context.Background(), RecordRequest{
		CompanyID: "company-1", PreviousScore: 40, NewScore: 90,
		Category: CategoryOverall, Reason: "Policy uploaded",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeHistoryAppendFailed, apperrors.Normalize(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_PostgresInsertFailureRollsBack(t *testing.T) {
	r, mock, _ := newSQLRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("company-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM csr_history").WillReturnRows(sqlmock.NewRows(historyColumns))
	mock.ExpectQuery("SELECT (.+) FROM csr_history").WillReturnRows(sqlmock.NewRows(historyColumns))
	mock.ExpectExec("INSERT INTO csr_history").WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err := r.RecordIfChanged(context.Background(), RecordRequest{
		CompanyID: "company-1", PreviousScore: 40, NewScore: 90,
		Category: CategoryOverall, Reason: "Policy uploaded",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeHistoryAppendFailed, apperrors.Normalize(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
