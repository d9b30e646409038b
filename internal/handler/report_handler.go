package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/service"
	"github.com/uext/extensions-api/pkg/response"
)

// ReportHandler exposes administrative reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Financial godoc
// @Summary Financial report
// @Description Per-offering enrollment counts and approved revenue. The
// @Description format query selects json (default), pdf or csv output.
// @Tags Reports
// @Produce json
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "json, pdf or csv"
// @Success 200 {object} response.Envelope
// @Router /reports/financial [get]
func (h *ReportHandler) Financial(c *gin.Context) {
	switch c.DefaultQuery("format", "json") {
	case "pdf":
		data, err := h.reports.FinancialPDF(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		sendAttachment(c, data, "financial-report", "pdf", "application/pdf")
	case "csv":
		data, err := h.reports.FinancialCSV(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		sendAttachment(c, data, "financial-report", "csv", "text/csv")
	default:
		report, err := h.reports.Financial(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
	}
}

// Users godoc
// @Summary Registered users report
// @Description Account counts per role and program. The format query selects
// @Description json (default), pdf or csv output.
// @Tags Reports
// @Produce json
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "json, pdf or csv"
// @Success 200 {object} response.Envelope
// @Router /reports/users [get]
func (h *ReportHandler) Users(c *gin.Context) {
	switch c.DefaultQuery("format", "json") {
	case "pdf":
		data, err := h.reports.UsersPDF(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		sendAttachment(c, data, "users-report", "pdf", "application/pdf")
	case "csv":
		data, err := h.reports.UsersCSV(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		sendAttachment(c, data, "users-report", "csv", "text/csv")
	default:
		report, err := h.reports.Users(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
	}
}

func sendAttachment(c *gin.Context, data []byte, name, ext, contentType string) {
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("2006-01-02"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
