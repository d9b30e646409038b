package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

type mockChangeRequestRepo struct {
	requests map[string]models.ChangeRequest
	created  *models.ChangeRequest
}

func (m *mockChangeRequestRepo) Create(ctx context.Context, req *models.ChangeRequest) error {
	req.ID = "cr-new"
	m.created = req
	return nil
}

func (m *mockChangeRequestRepo) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChangeRequestRepo) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error) {
	var list []models.ChangeRequest
	for _, r := range m.requests {
		list = append(list, r)
	}
	return list, len(list), nil
}

func (m *mockChangeRequestRepo) UpdateStatus(ctx context.Context, id string, status models.ChangeRequestStatus) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

func newChangeRequestSvc(repo *mockChangeRequestRepo) *ChangeRequestService {
	return NewChangeRequestService(repo, validator.New(), zap.NewNop())
}

func TestChangeRequestCreateOpensTicket(t *testing.T) {
	repo := &mockChangeRequestRepo{}
	svc := newChangeRequestSvc(repo)

	req, err := svc.Create(context.Background(), "a1", CreateChangeRequestPayload{
		Kind:    models.ChangeRequestBug,
		Subject: "Proof download fails",
		Detail:  "Downloading a proof for enrollment e1 returns 500.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestOpen, req.Status)
	assert.Equal(t, "a1", req.AccountID)
}

func TestChangeRequestCreateValidatesKind(t *testing.T) {
	svc := newChangeRequestSvc(&mockChangeRequestRepo{})

	_, err := svc.Create(context.Background(), "a1", CreateChangeRequestPayload{
		Kind:    "COMPLAINT",
		Subject: "x",
		Detail:  "y",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChangeRequestStatusTransitions(t *testing.T) {
	cases := []struct {
		from models.ChangeRequestStatus
		to   models.ChangeRequestStatus
		ok   bool
	}{
		{models.ChangeRequestOpen, models.ChangeRequestInReview, true},
		{models.ChangeRequestOpen, models.ChangeRequestClosed, true},
		{models.ChangeRequestInReview, models.ChangeRequestClosed, true},
		{models.ChangeRequestInReview, models.ChangeRequestOpen, false},
		{models.ChangeRequestClosed, models.ChangeRequestOpen, false},
		{models.ChangeRequestClosed, models.ChangeRequestInReview, false},
	}

	for _, tc := range cases {
		repo := &mockChangeRequestRepo{requests: map[string]models.ChangeRequest{
			"cr1": {ID: "cr1", Status: tc.from},
		}}
		svc := newChangeRequestSvc(repo)

		updated, err := svc.UpdateStatus(context.Background(), "cr1", UpdateChangeRequestStatusPayload{Status: tc.to})
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, updated.Status)
		} else {
			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
		}
	}
}

func TestChangeRequestUpdateStatusMissing(t *testing.T) {
	svc := newChangeRequestSvc(&mockChangeRequestRepo{})

	_, err := svc.UpdateStatus(context.Background(), "missing", UpdateChangeRequestStatusPayload{Status: models.ChangeRequestClosed})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
