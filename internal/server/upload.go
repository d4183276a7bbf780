package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisor-core/server/internal/agent/model"
	"github.com/advisor-core/server/internal/artifact"
	logx "github.com/advisor-core/server/pkg/logger"
)

const defaultURLType = "pricing"

// HandlePresentationUpload accepts a presentation file, stores it in the
// media directory, and registers its URL under the given presentation type
// so tool nodes can hand it out later.
func HandlePresentationUpload(urls model.PresentationURLRepository, uploadDir, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
			return
		}

		urlType := strings.TrimSpace(c.PostForm("presentation_type"))
		if urlType == "" {
			urlType = defaultURLType
		}

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			logx.Error().Err(err).Str("dir", uploadDir).Msg("Error creating upload dir")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
			return
		}

		ext := filepath.Ext(file.Filename)
		name := uuid.New().String() + ext
		dst := filepath.Join(uploadDir, name)
		if err := c.SaveUploadedFile(file, dst); err != nil {
			logx.Error().Err(err).Str("path", dst).Msg("Error saving uploaded file")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
			return
		}

		url := strings.TrimSuffix(baseURL, "/") + artifact.MediaRoute + "/" + name
		if err := urls.RegisterPresentationURL(c.Request.Context(), urlType, url); err != nil {
			logx.Error().Err(err).Str("url_type", urlType).Msg("Error registering presentation URL")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register presentation"})
			return
		}

		logx.Info().Str("url_type", urlType).Str("url", url).Msg("Presentation uploaded")
		c.JSON(http.StatusOK, gin.H{"url_type": urlType, "url": url})
	}
}
