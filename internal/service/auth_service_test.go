package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

type mockAuthRepo struct {
	byEmail map[string]*models.Account
	created *models.Account
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if a, ok := m.byEmail[email]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	for _, a := range m.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, account *models.Account) error {
	account.ID = "acc-new"
	m.created = account
	return nil
}

type mockProgramReader struct {
	programs map[string]*models.Program
}

func (m *mockProgramReader) FindProgram(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthSvc(repo *mockAuthRepo, programs *mockProgramReader) *AuthService {
	return NewAuthService(repo, programs, validator.New(), zap.NewNop(), AuthConfig{
		Secret:              "test-secret",
		Expiration:          time.Hour,
		Issuer:              "extensions-api",
		InstitutionalDomain: "est.univ.edu",
	})
}

func TestRegisterInstitutionalEmailBecomesStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	programs := &mockProgramReader{programs: map[string]*models.Program{"p1": {ID: "p1", Name: "Engineering"}}}
	svc := newAuthSvc(repo, programs)

	account, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "Jane.Doe@est.univ.edu",
		Password:  "supersecret",
		FullName:  "Jane Doe",
		ProgramID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, account.Role)
	assert.Equal(t, "jane.doe@est.univ.edu", account.Email)
	require.NotNil(t, account.ProgramID)
	assert.Equal(t, "p1", *account.ProgramID)
	assert.False(t, account.DocumentsVerified)
}

func TestRegisterInstitutionalEmailRequiresProgram(t *testing.T) {
	svc := newAuthSvc(&mockAuthRepo{}, &mockProgramReader{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "jane@est.univ.edu",
		Password: "supersecret",
		FullName: "Jane Doe",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRegisterExternalEmailBecomesPlainUser(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthSvc(repo, &mockProgramReader{})

	account, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "john@gmail.com",
		Password: "supersecret",
		FullName: "John Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RolePlainUser, account.Role)
	assert.Nil(t, account.ProgramID)
}

func TestRegisterExternalEmailRejectsProgram(t *testing.T) {
	svc := newAuthSvc(&mockAuthRepo{}, &mockProgramReader{programs: map[string]*models.Program{"p1": {ID: "p1"}}})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "john@gmail.com",
		Password:  "supersecret",
		FullName:  "John Doe",
		ProgramID: "p1",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{byEmail: map[string]*models.Account{
		"jane@est.univ.edu": {ID: "acc-1", Email: "jane@est.univ.edu", PasswordHash: string(hash), Role: models.RoleStudent, Active: true},
	}}
	svc := newAuthSvc(repo, &mockProgramReader{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@est.univ.edu", Password: "supersecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Greater(t, resp.ExpiresIn, int64(0))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{byEmail: map[string]*models.Account{
		"jane@est.univ.edu": {ID: "acc-1", Email: "jane@est.univ.edu", PasswordHash: string(hash), Active: true},
	}}
	svc := newAuthSvc(repo, &mockProgramReader{})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "jane@est.univ.edu", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{byEmail: map[string]*models.Account{
		"jane@est.univ.edu": {ID: "acc-1", Email: "jane@est.univ.edu", PasswordHash: string(hash), Active: false},
	}}
	svc := newAuthSvc(repo, &mockProgramReader{})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "jane@est.univ.edu", Password: "supersecret"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}
