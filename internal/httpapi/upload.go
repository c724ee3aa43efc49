package httpapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Stateless multipart-to-disk upload endpoint. Entirely independent of the
// relay registry.

// allowed upload content types: images, video and audio that chat clients
// attach to media and voice messages
var allowedUploadTypes = map[string]bool{
	"image/jpeg":   true,
	"image/png":    true,
	"image/gif":    true,
	"image/webp":   true,
	"video/mp4":    true,
	"video/webm":   true,
	"audio/mpeg":   true,
	"audio/ogg":    true,
	"audio/wav":    true,
	"audio/webm":   true,
	"audio/mp4":    true,
}

// UploadRecorder traces completed uploads, best-effort. May be nil.
type UploadRecorder interface {
	RecordUpload(name string, size int64, contentType string)
}

type UploadHandler struct {
	dir      string
	maxBytes int64
	recorder UploadRecorder
}

func NewUploadHandler(dir string, maxBytes int64, recorder UploadRecorder) *UploadHandler {
	return &UploadHandler{
		dir:      dir,
		maxBytes: maxBytes,
		recorder: recorder,
	}
}

func (h *UploadHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/upload", h.Upload)
	// uploaded files are served back as static content
	r.Static("/uploads", h.dir)
}

func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	if file.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes),
		})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": fmt.Sprintf("content type %q is not allowed", contentType),
		})
		return
	}

	// never trust the client filename, only its extension
	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.dir, name)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	if h.recorder != nil {
		h.recorder.RecordUpload(name, file.Size, contentType)
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":  "/uploads/" + name,
		"name": name,
		"size": file.Size,
		"type": contentType,
	})
}
