package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/export"
)

type reportRepository interface {
	FinancialSummary(ctx context.Context) ([]models.FinancialReportRow, error)
	UserSummary(ctx context.Context) ([]models.UserReportRow, error)
}

// ReportService aggregates enrollment and registration data and renders it as
// JSON, CSV or PDF.
type ReportService struct {
	repo   reportRepository
	pdf    *export.PDFExporter
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(repo reportRepository, pdf *export.PDFExporter, csv *export.CSVExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, pdf: pdf, csv: csv, logger: logger}
}

// Financial returns per-offering enrollment counts and revenue sums.
func (s *ReportService) Financial(ctx context.Context) (*models.FinancialReport, error) {
	rows, err := s.repo.FinancialSummary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build financial report")
	}
	report := &models.FinancialReport{Rows: rows, GeneratedAt: time.Now().UTC()}
	for _, row := range rows {
		report.TotalRevenue += row.Revenue
	}
	return report, nil
}

// Users returns registered account counts per role and program.
func (s *ReportService) Users(ctx context.Context) (*models.UserReport, error) {
	rows, err := s.repo.UserSummary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build user report")
	}
	report := &models.UserReport{Rows: rows, GeneratedAt: time.Now().UTC()}
	for _, row := range rows {
		report.Total += row.Count
	}
	return report, nil
}

// FinancialPDF renders the financial report as a PDF document.
func (s *ReportService) FinancialPDF(ctx context.Context) ([]byte, error) {
	report, err := s.Financial(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.Render(financialDataset(report), "Financial Report")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render financial report")
	}
	return data, nil
}

// FinancialCSV renders the financial report as CSV.
func (s *ReportService) FinancialCSV(ctx context.Context) ([]byte, error) {
	report, err := s.Financial(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(financialDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render financial report")
	}
	return data, nil
}

// UsersPDF renders the user report as a PDF document.
func (s *ReportService) UsersPDF(ctx context.Context) ([]byte, error) {
	report, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.Render(userDataset(report), "Registered Users Report")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render user report")
	}
	return data, nil
}

// UsersCSV renders the user report as CSV.
func (s *ReportService) UsersCSV(ctx context.Context) ([]byte, error) {
	report, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(userDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render user report")
	}
	return data, nil
}

func financialDataset(report *models.FinancialReport) export.Dataset {
	headers := []string{"Offering", "Kind", "Capacity", "Pending", "Approved", "Rejected", "Revenue"}
	rows := make([]map[string]string, 0, len(report.Rows)+1)
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"Offering": row.OfferingTitle,
			"Kind":     string(row.OfferingKind),
			"Capacity": fmt.Sprintf("%d", row.Capacity),
			"Pending":  fmt.Sprintf("%d", row.Pending),
			"Approved": fmt.Sprintf("%d", row.Approved),
			"Rejected": fmt.Sprintf("%d", row.Rejected),
			"Revenue":  fmt.Sprintf("%.2f", row.Revenue),
		})
	}
	rows = append(rows, map[string]string{
		"Offering": "TOTAL",
		"Revenue":  fmt.Sprintf("%.2f", report.TotalRevenue),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

func userDataset(report *models.UserReport) export.Dataset {
	headers := []string{"Role", "Program", "Count"}
	rows := make([]map[string]string, 0, len(report.Rows)+1)
	for _, row := range report.Rows {
		program := ""
		if row.ProgramName != nil {
			program = *row.ProgramName
		}
		rows = append(rows, map[string]string{
			"Role":    string(row.Role),
			"Program": program,
			"Count":   fmt.Sprintf("%d", row.Count),
		})
	}
	rows = append(rows, map[string]string{
		"Role":  "TOTAL",
		"Count": fmt.Sprintf("%d", report.Total),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}
