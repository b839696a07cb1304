package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objectName  string
	contentType string
	body        []byte
}

func (f *fakeStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	f.objectName, f.contentType = objectName, contentType
	b, err := io.ReadAll(reader)
	f.body = b
	return "http://cdn.local/solace-chat/" + objectName, err
}

func upload(t *testing.T, h *MediaHandler, filename string, content []byte) map[string]any {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/upload", h.Upload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMediaHandler_UploadPDF(t *testing.T) {
	storage := &fakeStorage{}
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

	body := upload(t, NewMediaHandler(storage), "Report.PDF", pdf)
	assert.EqualValues(t, 200, body["code"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "pdf", data["contentType"])
	assert.True(t, strings.HasPrefix(data["url"].(string), "http://cdn.local/solace-chat/chat/"))
	assert.True(t, strings.HasSuffix(storage.objectName, ".pdf"))
	assert.Equal(t, "application/pdf", storage.contentType)
	// 嗅探后完整内容仍被上传
	assert.Equal(t, pdf, storage.body)
}

func TestMediaHandler_RejectsUnsupported(t *testing.T) {
	storage := &fakeStorage{}
	body := upload(t, NewMediaHandler(storage), "notes.txt", []byte("just some plain text"))
	assert.EqualValues(t, 400, body["code"])
	assert.Empty(t, storage.objectName)
}
