package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

func offeringRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "kind", "title", "description", "category_id", "organizer_id",
		"capacity", "audience", "is_free", "price", "created_at", "updated_at",
	}).AddRow("off-1", models.OfferingCourse, "Go Workshop", "", "cat-1", "org-1",
		30, models.AudiencePublic, true, nil, now, now)
}

func TestOfferingDeleteRefusedWithEnrollees(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "off-1")
	require.ErrorIs(t, err, appErrors.ErrOfferingHasEnrollees)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingDeleteClearsPrograms(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM offering_programs WHERE offering_id = $1")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM offerings WHERE id = $1")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "off-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligibleStudentAudiences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	programID := "prog-1"
	mock.ExpectQuery("NOT EXISTS .+ \\(o\\.audience = \\$2 OR o\\.audience = \\$3").
		WithArgs("acc-1", models.AudiencePublic, models.AudienceAllPrograms, models.AudienceProgramSpecific, programID).
		WillReturnRows(offeringRows())

	offerings, err := repo.ListEligible(context.Background(), "acc-1", models.RoleStudent, &programID, true)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.Equal(t, "off-1", offerings[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligiblePlainUserSeesPublicOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery("NOT EXISTS .+ AND o.audience = \\$2").
		WithArgs("acc-2", models.AudiencePublic).
		WillReturnRows(offeringRows())

	offerings, err := repo.ListEligible(context.Background(), "acc-2", models.RolePlainUser, nil, true)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligibleAdminSeesEverything(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery("NOT EXISTS .+ ORDER BY o.created_at DESC").
		WithArgs("adm-1").
		WillReturnRows(offeringRows())

	offerings, err := repo.ListEligible(context.Background(), "adm-1", models.RoleAdmin, nil, true)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
