package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/pkg/config"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

// uploadedFile is the normalized result of a multipart file intake.
type uploadedFile struct {
	Filename    string
	Size        int64
	ContentType string
	Data        []byte
}

// readUpload pulls a multipart file and enforces the intake contract: only
// configured MIME types up to the configured size make it past the handler.
// A missing field returns (nil, nil).
func readUpload(c *gin.Context, field string, uploads config.UploadsConfig) (*uploadedFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload")
	}
	if header.Size > uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}
	contentType := header.Header.Get("Content-Type")
	if !mimeAllowed(contentType, uploads.AllowedMIMEs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload")
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, uploads.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file upload")
	}
	if int64(len(data)) > uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}

	return &uploadedFile{
		Filename:    header.Filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func mimeAllowed(contentType string, allowed []string) bool {
	for _, mime := range allowed {
		if strings.EqualFold(contentType, mime) {
			return true
		}
	}
	return false
}
