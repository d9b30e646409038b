package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/models"
	"github.com/uext/extensions-api/internal/service"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/response"
)

// OfferingHandler exposes catalog offering endpoints.
type OfferingHandler struct {
	offerings   *service.OfferingService
	eligibility *service.EligibilityService
}

// NewOfferingHandler constructs OfferingHandler.
func NewOfferingHandler(offerings *service.OfferingService, eligibility *service.EligibilityService) *OfferingHandler {
	return &OfferingHandler{offerings: offerings, eligibility: eligibility}
}

// Create godoc
// @Summary Create an offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body service.OfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req service.OfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Update godoc
// @Summary Update an offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body service.OfferingRequest true "Offering payload"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [put]
func (h *OfferingHandler) Update(c *gin.Context) {
	var req service.OfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Delete godoc
// @Summary Delete an offering without enrollments
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 204
// @Router /offerings/{id} [delete]
func (h *OfferingHandler) Delete(c *gin.Context) {
	if err := h.offerings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get an offering by ID
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	offering, err := h.offerings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// List godoc
// @Summary List offerings
// @Tags Offerings
// @Produce json
// @Param kind query string false "COURSE or EVENT"
// @Param categoryId query string false "Filter by category"
// @Param audience query string false "Filter by audience policy"
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	var filter models.OfferingFilter
	filter.Kind = models.OfferingKind(strings.ToUpper(c.Query("kind")))
	filter.CategoryID = c.Query("categoryId")
	filter.Audience = models.AudiencePolicy(strings.ToUpper(c.Query("audience")))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	offerings, pagination, err := h.offerings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, pagination)
}

// ListAvailable godoc
// @Summary List offerings the caller may enroll in
// @Description Applies the audience policy for the caller's role and program
// @Description and excludes offerings the caller is already enrolled in.
// @Tags Offerings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offerings/available [get]
func (h *OfferingHandler) ListAvailable(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	offerings, err := h.eligibility.ListAvailable(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, nil)
}
