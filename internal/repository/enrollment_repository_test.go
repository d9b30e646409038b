package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func pendingEnrollment() *models.Enrollment {
	return &models.Enrollment{
		AccountID:  "acc-1",
		OfferingID: "off-1",
		State:      models.EnrollmentPending,
	}
}

func TestEnrollmentCreateAtomicWithProof(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-1", "off-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND state IN ($2, $3)")).
		WithArgs("off-1", models.EnrollmentPending, models.EnrollmentApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_proofs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := pendingEnrollment()
	proof := &models.PaymentProof{Filename: "receipt.pdf", Size: 4, ContentType: "application/pdf", Data: []byte("data")}

	err := repo.CreateAtomic(context.Background(), enrollment, proof)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, enrollment.ID, proof.EnrollmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateAtomicDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateAtomic(context.Background(), pendingEnrollment(), nil)
	require.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateAtomicCapacityExceeded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-1", "off-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND state IN ($2, $3)")).
		WithArgs("off-1", models.EnrollmentPending, models.EnrollmentApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.CreateAtomic(context.Background(), pendingEnrollment(), nil)
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateAtomicUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-1", "off-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND state IN ($2, $3)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateAtomic(context.Background(), pendingEnrollment(), nil)
	require.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentResolvePending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE enrollments SET state").
		WithArgs("enr-1", models.EnrollmentApproved, "admin-1", at, models.EnrollmentPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Resolve(context.Background(), "enr-1", models.EnrollmentApproved, "admin-1", at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentResolveAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE enrollments SET state").
		WithArgs("enr-1", models.EnrollmentRejected, "admin-1", at, models.EnrollmentPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve(context.Background(), "enr-1", models.EnrollmentRejected, "admin-1", at)
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "acc-1", "off-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2")).
		WithArgs("acc-2", "off-1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.Exists(context.Background(), "acc-2", "off-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentGetProofBytes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	uploaded := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"enrollment_id", "filename", "size", "content_type", "data", "uploaded_at"}).
		AddRow("enr-1", "receipt.pdf", int64(8), "application/pdf", []byte("%PDF-1.4"), uploaded)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT enrollment_id, filename, size, content_type, data, uploaded_at")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	proof, err := repo.GetProof(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), proof.Data)
	require.Equal(t, "application/pdf", proof.ContentType)
	require.NoError(t, mock.ExpectationsWereMet())
}
