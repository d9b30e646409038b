package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/service"
	"github.com/uext/extensions-api/pkg/config"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/response"
)

// DocumentHandler exposes identity document endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	uploads   config.UploadsConfig
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService, uploads config.UploadsConfig) *DocumentHandler {
	return &DocumentHandler{documents: documents, uploads: uploads}
}

// Upload godoc
// @Summary Upload an identity document for the caller
// @Tags Documents
// @Accept mpfd
// @Produce json
// @Param document formData file true "Identity document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload, err := readUpload(c, "document", h.uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document file is required"))
		return
	}
	doc, err := h.documents.Upload(c.Request.Context(), claims.AccountID, service.DocumentUpload{
		Filename:    upload.Filename,
		Size:        upload.Size,
		ContentType: upload.ContentType,
		Data:        upload.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// ListMine godoc
// @Summary List the caller's identity documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/mine [get]
func (h *DocumentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.documents.ListForAccount(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// ListForAccount godoc
// @Summary List identity documents for an account
// @Tags Documents
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Router /accounts/{id}/documents [get]
func (h *DocumentHandler) ListForAccount(c *gin.Context) {
	docs, err := h.documents.ListForAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Download godoc
// @Summary Download an identity document
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.documents.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Content-Length", strconv.FormatInt(int64(len(doc.Data)), 10))
	c.Data(http.StatusOK, contentType, doc.Data)
}

// Verify godoc
// @Summary Record the verification decision for an account's documents
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body service.VerifyDocumentsRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /accounts/{id}/verify-documents [put]
func (h *DocumentHandler) Verify(c *gin.Context) {
	var req service.VerifyDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	account, err := h.documents.Verify(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}
