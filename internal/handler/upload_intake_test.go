package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uext/extensions-api/pkg/config"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

func multipartContext(t *testing.T, field, filename, contentType string, data []byte) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	return c
}

func intakeLimits() config.UploadsConfig {
	return config.UploadsConfig{
		MaxFileSizeBytes: 64,
		AllowedMIMEs:     []string{"application/pdf"},
	}
}

func TestReadUploadAcceptsPDF(t *testing.T) {
	c := multipartContext(t, "proof", "receipt.pdf", "application/pdf", []byte("%PDF-1.4 test"))

	file, err := readUpload(c, "proof", intakeLimits())
	require.NoError(t, err)
	require.NotNil(t, file)
	require.Equal(t, "receipt.pdf", file.Filename)
	require.Equal(t, "application/pdf", file.ContentType)
	require.Equal(t, int64(len("%PDF-1.4 test")), file.Size)
	require.Equal(t, []byte("%PDF-1.4 test"), file.Data)
}

func TestReadUploadRejectsUnsupportedType(t *testing.T) {
	c := multipartContext(t, "proof", "receipt.png", "image/png", []byte("not a pdf"))

	_, err := readUpload(c, "proof", intakeLimits())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReadUploadRejectsOversizedFile(t *testing.T) {
	c := multipartContext(t, "proof", "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 65))

	_, err := readUpload(c, "proof", intakeLimits())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReadUploadMissingFieldIsNotAnError(t *testing.T) {
	c := multipartContext(t, "unrelated", "x.pdf", "application/pdf", []byte("x"))

	file, err := readUpload(c, "proof", intakeLimits())
	require.NoError(t, err)
	require.Nil(t, file)
}
