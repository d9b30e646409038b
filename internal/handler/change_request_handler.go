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

// ChangeRequestHandler exposes the feedback ticket endpoints.
type ChangeRequestHandler struct {
	requests *service.ChangeRequestService
}

// NewChangeRequestHandler constructs ChangeRequestHandler.
func NewChangeRequestHandler(requests *service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{requests: requests}
}

// Create godoc
// @Summary File a feature or bug ticket
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param payload body service.CreateChangeRequestPayload true "Ticket payload"
// @Success 201 {object} response.Envelope
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload service.CreateChangeRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req, err := h.requests.Create(c.Request.Context(), claims.AccountID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// List godoc
// @Summary List tickets
// @Tags ChangeRequests
// @Produce json
// @Param kind query string false "FEATURE or BUG"
// @Param status query string false "OPEN, IN_REVIEW or CLOSED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	filter := h.parseFilter(c)
	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// ListMine godoc
// @Summary List the caller's tickets
// @Tags ChangeRequests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /change-requests/mine [get]
func (h *ChangeRequestHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := h.parseFilter(c)
	filter.AccountID = claims.AccountID
	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// UpdateStatus godoc
// @Summary Move a ticket through review
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param payload body service.UpdateChangeRequestStatusPayload true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /change-requests/{id}/status [put]
func (h *ChangeRequestHandler) UpdateStatus(c *gin.Context) {
	var payload service.UpdateChangeRequestStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req, err := h.requests.UpdateStatus(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

func (h *ChangeRequestHandler) parseFilter(c *gin.Context) models.ChangeRequestFilter {
	var filter models.ChangeRequestFilter
	filter.Kind = models.ChangeRequestKind(strings.ToUpper(c.Query("kind")))
	filter.Status = models.ChangeRequestStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}
