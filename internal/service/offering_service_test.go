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

type mockOfferingRepo struct {
	offerings map[string]*models.Offering
	created   *models.Offering
	deleteErr error
}

func (m *mockOfferingRepo) Create(ctx context.Context, offering *models.Offering) error {
	offering.ID = "off-new"
	m.created = offering
	return nil
}

func (m *mockOfferingRepo) Update(ctx context.Context, offering *models.Offering) error {
	if m.offerings == nil {
		return sql.ErrNoRows
	}
	if _, ok := m.offerings[offering.ID]; !ok {
		return sql.ErrNoRows
	}
	m.offerings[offering.ID] = offering
	return nil
}

func (m *mockOfferingRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.offerings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.offerings, id)
	return nil
}

func (m *mockOfferingRepo) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	if o, ok := m.offerings[id]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOfferingRepo) List(ctx context.Context, filter models.OfferingFilter) ([]models.Offering, int, error) {
	var list []models.Offering
	for _, o := range m.offerings {
		list = append(list, *o)
	}
	return list, len(list), nil
}

func newOfferingSvc(repo *mockOfferingRepo) *OfferingService {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewOfferingService(repo, cache, validator.New(), zap.NewNop())
}

func validOfferingRequest() OfferingRequest {
	return OfferingRequest{
		Kind:     models.OfferingCourse,
		Title:    "Intro to Databases",
		Capacity: 30,
		Audience: models.AudiencePublic,
		IsFree:   true,
	}
}

func TestOfferingCreateFree(t *testing.T) {
	repo := &mockOfferingRepo{}
	svc := newOfferingSvc(repo)

	offering, err := svc.Create(context.Background(), validOfferingRequest())
	require.NoError(t, err)
	assert.True(t, offering.IsFree)
	assert.Nil(t, offering.Price)
	assert.NotNil(t, repo.created)
}

func TestOfferingCreateFreeRejectsPrice(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	req := validOfferingRequest()
	req.Price = price(100)
	_, err := svc.Create(context.Background(), req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOfferingCreatePaidRequiresPositivePrice(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	req := validOfferingRequest()
	req.IsFree = false
	_, err := svc.Create(context.Background(), req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req.Price = price(0)
	_, err = svc.Create(context.Background(), req)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req.Price = price(250)
	offering, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, offering.Price)
	assert.Equal(t, 250.0, *offering.Price)
}

func TestOfferingCreateProgramSpecificRequiresPrograms(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	req := validOfferingRequest()
	req.Audience = models.AudienceProgramSpecific
	_, err := svc.Create(context.Background(), req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req.ProgramIDs = []string{"p1"}
	offering, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, offering.ProgramIDs)
}

func TestOfferingCreatePublicRejectsPrograms(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	req := validOfferingRequest()
	req.ProgramIDs = []string{"p1"}
	_, err := svc.Create(context.Background(), req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOfferingCreateRejectsZeroCapacity(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	req := validOfferingRequest()
	req.Capacity = 0
	_, err := svc.Create(context.Background(), req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOfferingDeleteWithEnrollees(t *testing.T) {
	repo := &mockOfferingRepo{
		offerings: map[string]*models.Offering{"o1": {ID: "o1"}},
		deleteErr: appErrors.ErrOfferingHasEnrollees,
	}
	svc := newOfferingSvc(repo)

	err := svc.Delete(context.Background(), "o1")
	assert.ErrorIs(t, err, appErrors.ErrOfferingHasEnrollees)
}

func TestOfferingUpdateMissing(t *testing.T) {
	svc := newOfferingSvc(&mockOfferingRepo{})

	_, err := svc.Update(context.Background(), "missing", validOfferingRequest())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
