package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/service"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/response"
)

// CatalogHandler exposes program, category and organizer endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListPrograms godoc
// @Summary List academic programs
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *CatalogHandler) ListPrograms(c *gin.Context) {
	programs, err := h.catalog.ListPrograms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, nil)
}

// CreateProgram godoc
// @Summary Create a program
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Router /programs [post]
func (h *CatalogHandler) CreateProgram(c *gin.Context) {
	var req service.ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := h.catalog.CreateProgram(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// UpdateProgram godoc
// @Summary Update a program
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [put]
func (h *CatalogHandler) UpdateProgram(c *gin.Context) {
	var req service.ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := h.catalog.UpdateProgram(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// DeleteProgram godoc
// @Summary Delete a program
// @Tags Catalog
// @Param id path string true "Program ID"
// @Success 204
// @Router /programs/{id} [delete]
func (h *CatalogHandler) DeleteProgram(c *gin.Context) {
	if err := h.catalog.DeleteProgram(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCategories godoc
// @Summary List offering categories
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// CreateCategory godoc
// @Summary Create a category
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Router /categories [post]
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// UpdateCategory godoc
// @Summary Rename a category
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body service.CategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Router /categories/{id} [put]
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// DeleteCategory godoc
// @Summary Delete a category
// @Tags Catalog
// @Param id path string true "Category ID"
// @Success 204
// @Router /categories/{id} [delete]
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListOrganizers godoc
// @Summary List organizers
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizers [get]
func (h *CatalogHandler) ListOrganizers(c *gin.Context) {
	organizers, err := h.catalog.ListOrganizers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, organizers, nil)
}

// CreateOrganizer godoc
// @Summary Create an organizer
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.OrganizerRequest true "Organizer payload"
// @Success 201 {object} response.Envelope
// @Router /organizers [post]
func (h *CatalogHandler) CreateOrganizer(c *gin.Context) {
	var req service.OrganizerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	organizer, err := h.catalog.CreateOrganizer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, organizer)
}

// UpdateOrganizer godoc
// @Summary Update an organizer
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Organizer ID"
// @Param payload body service.OrganizerRequest true "Organizer payload"
// @Success 200 {object} response.Envelope
// @Router /organizers/{id} [put]
func (h *CatalogHandler) UpdateOrganizer(c *gin.Context) {
	var req service.OrganizerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	organizer, err := h.catalog.UpdateOrganizer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, organizer, nil)
}

// DeleteOrganizer godoc
// @Summary Delete an organizer
// @Tags Catalog
// @Param id path string true "Organizer ID"
// @Success 204
// @Router /organizers/{id} [delete]
func (h *CatalogHandler) DeleteOrganizer(c *gin.Context) {
	if err := h.catalog.DeleteOrganizer(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
