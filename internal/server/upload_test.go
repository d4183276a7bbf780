package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-core/server/internal/artifact"
)

type memoryURLRepo struct {
	urls map[string]string
}

func (r *memoryURLRepo) RegisterPresentationURL(ctx context.Context, urlType, url string) error {
	if r.urls == nil {
		r.urls = map[string]string{}
	}
	r.urls[urlType] = url
	return nil
}

func (r *memoryURLRepo) LookupPresentationURL(ctx context.Context, urlType string) (string, error) {
	return r.urls[urlType], nil
}

func newUploadRouter(t *testing.T, repo *memoryURLRepo) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	router := gin.New()
	router.POST("/api/ppt/upload", HandlePresentationUpload(repo, dir, "http://localhost:8000"))
	return router, dir
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// TestHandlePresentationUpload_StoresAndRegisters verifies the happy path:
// the file is saved under the media dir and its URL registered under the
// default url_type.
func TestHandlePresentationUpload_StoresAndRegisters(t *testing.T) {
	repo := &memoryURLRepo{}
	router, dir := newUploadRouter(t, repo)

	body, contentType := multipartBody(t, "deck.pdf", []byte("pdf-bytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/ppt/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pricing", resp["url_type"])
	assert.True(t, strings.HasPrefix(resp["url"], "http://localhost:8000"+artifact.MediaRoute+"/"))
	assert.True(t, strings.HasSuffix(resp["url"], ".pdf"))
	assert.Equal(t, resp["url"], repo.urls["pricing"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestHandlePresentationUpload_CustomURLType verifies the url_type field is
// honored.
func TestHandlePresentationUpload_CustomURLType(t *testing.T) {
	repo := &memoryURLRepo{}
	router, _ := newUploadRouter(t, repo)

	body, contentType := multipartBody(t, "intro.pptx", []byte("x"), map[string]string{"presentation_type": "intro"})
	req := httptest.NewRequest(http.MethodPost, "/api/ppt/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, repo.urls["intro"])
	assert.Empty(t, repo.urls["pricing"])
}

// TestHandlePresentationUpload_MissingFile verifies a request without a file
// part is rejected.
func TestHandlePresentationUpload_MissingFile(t *testing.T) {
	router, _ := newUploadRouter(t, &memoryURLRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/ppt/upload", strings.NewReader(""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
