package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/models"
	"github.com/uext/extensions-api/internal/service"
	"github.com/uext/extensions-api/pkg/config"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	uploads     config.UploadsConfig
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, uploads config.UploadsConfig) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, uploads: uploads}
}

// Create godoc
// @Summary Enroll in an offering
// @Description Free offerings are approved immediately; paid offerings require
// @Description a payment method and a PDF proof sent as multipart form data.
// @Tags Enrollments
// @Accept mpfd
// @Accept json
// @Produce json
// @Param offering_id formData string true "Offering ID"
// @Param payment_method formData string false "CREDIT_CARD, TRANSFER or DEPOSIT"
// @Param proof formData file false "Proof of payment (PDF)"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.CreateEnrollmentRequest{AccountID: claims.AccountID}

	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/") {
		req.OfferingID = c.PostForm("offering_id")
		if raw := strings.TrimSpace(c.PostForm("payment_method")); raw != "" {
			method := models.PaymentMethod(strings.ToUpper(raw))
			req.PaymentMethod = &method
		}
		upload, err := readUpload(c, "proof", h.uploads)
		if err != nil {
			response.Error(c, err)
			return
		}
		if upload != nil {
			req.Proof = &service.ProofUpload{
				Filename:    upload.Filename,
				Size:        upload.Size,
				ContentType: upload.ContentType,
				Data:        upload.Data,
			}
		}
	} else {
		var body struct {
			OfferingID    string  `json:"offering_id"`
			PaymentMethod *string `json:"payment_method,omitempty"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		req.OfferingID = body.OfferingID
		if body.PaymentMethod != nil {
			method := models.PaymentMethod(strings.ToUpper(*body.PaymentMethod))
			req.PaymentMethod = &method
		}
	}

	enrollment, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Resolve godoc
// @Summary Approve or reject a pending enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ResolveEnrollmentRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/resolve [put]
func (h *EnrollmentHandler) Resolve(c *gin.Context) {
	var req service.ResolveEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Resolve(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param accountId query string false "Filter by account"
// @Param offeringId query string false "Filter by offering"
// @Param state query string false "Filter by state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := h.parseFilter(c)
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ListMine godoc
// @Summary List the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/mine [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := h.parseFilter(c)
	filter.AccountID = claims.AccountID
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// DownloadProof godoc
// @Summary Download the payment proof for an enrollment
// @Tags Enrollments
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} binary
// @Router /enrollments/{id}/proof [get]
func (h *EnrollmentHandler) DownloadProof(c *gin.Context) {
	proof, err := h.enrollments.GetProof(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := proof.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", proof.Filename))
	c.Header("Content-Length", strconv.FormatInt(int64(len(proof.Data)), 10))
	c.Data(http.StatusOK, contentType, proof.Data)
}

func (h *EnrollmentHandler) parseFilter(c *gin.Context) models.EnrollmentFilter {
	var filter models.EnrollmentFilter
	filter.AccountID = c.Query("accountId")
	filter.OfferingID = c.Query("offeringId")
	filter.State = models.EnrollmentState(strings.ToUpper(c.Query("state")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
