package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

func TestAccountFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "role", "program_id",
		"documents_verified", "verified_by", "verified_at", "active", "created_at", "updated_at",
	}).AddRow("acc-1", "ana@est.univ.edu", "$2a$10$hash", "Ana Souza", models.RoleStudent, "prog-1",
		true, "admin-1", now, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("ana@est.univ.edu").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), "ana@est.univ.edu")
	require.NoError(t, err)
	require.Equal(t, "acc-1", account.ID)
	require.Equal(t, models.RoleStudent, account.Role)
	require.True(t, account.DocumentsVerified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	account := &models.Account{Email: "new@example.com", PasswordHash: "hash", FullName: "New User", Role: models.RolePlainUser, Active: true}
	err := repo.Create(context.Background(), account)
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.False(t, account.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Account{Email: "taken@example.com"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountSetDocumentsVerified(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE accounts SET documents_verified").
		WithArgs("acc-1", true, "admin-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetDocumentsVerified(context.Background(), "acc-1", true, "admin-1", at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
