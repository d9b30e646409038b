package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	"github.com/uext/extensions-api/pkg/export"
)

type mockReportRepo struct {
	financial []models.FinancialReportRow
	users     []models.UserReportRow
}

func (m *mockReportRepo) FinancialSummary(ctx context.Context) ([]models.FinancialReportRow, error) {
	return m.financial, nil
}

func (m *mockReportRepo) UserSummary(ctx context.Context) ([]models.UserReportRow, error) {
	return m.users, nil
}

func newReportSvc(repo *mockReportRepo) *ReportService {
	return NewReportService(repo, export.NewPDFExporter(), export.NewCSVExporter(), zap.NewNop())
}

func TestFinancialReportTotals(t *testing.T) {
	repo := &mockReportRepo{financial: []models.FinancialReportRow{
		{OfferingID: "o1", OfferingTitle: "Databases", OfferingKind: models.OfferingCourse, Capacity: 30, Pending: 2, Approved: 10, Rejected: 1, Revenue: 1500},
		{OfferingID: "o2", OfferingTitle: "Open Day", OfferingKind: models.OfferingEvent, Capacity: 100, Approved: 40, Revenue: 0},
	}}
	svc := newReportSvc(repo)

	report, err := svc.Financial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500.0, report.TotalRevenue)
	assert.Len(t, report.Rows, 2)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestUserReportTotals(t *testing.T) {
	program := "Engineering"
	repo := &mockReportRepo{users: []models.UserReportRow{
		{Role: models.RoleStudent, ProgramName: &program, Count: 12},
		{Role: models.RolePlainUser, Count: 30},
	}}
	svc := newReportSvc(repo)

	report, err := svc.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, report.Total)
}

func TestFinancialReportCSVRender(t *testing.T) {
	repo := &mockReportRepo{financial: []models.FinancialReportRow{
		{OfferingID: "o1", OfferingTitle: "Databases", OfferingKind: models.OfferingCourse, Capacity: 30, Approved: 10, Revenue: 1500},
	}}
	svc := newReportSvc(repo)

	data, err := svc.FinancialCSV(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Offering,Kind,Capacity,Pending,Approved,Rejected,Revenue", lines[0])
	assert.Contains(t, lines[1], "Databases")
	assert.Contains(t, lines[1], "1500.00")
	assert.Contains(t, lines[2], "TOTAL")
}

func TestUserReportPDFRender(t *testing.T) {
	repo := &mockReportRepo{users: []models.UserReportRow{
		{Role: models.RoleStudent, Count: 5},
	}}
	svc := newReportSvc(repo)

	data, err := svc.UsersPDF(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
