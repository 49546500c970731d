package ginserver

import (
	"log/slog"
	"net/http"
	"path/filepath"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parley/internal/infra/storage/s3"
)

const maxAttachmentSize = 10 << 20 // 10 MiB

// AttachmentHandler accepts an image upload and returns the public URL used
// as a message's image reference.
type AttachmentHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

func (h AttachmentHandler) Upload(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachments unavailable"})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > maxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	key := "attachments/" + uuid.NewString() + filepath.Ext(header.Filename)
	url, err := h.Uploader.Upload(c.Request.Context(), key, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("attachment upload failed", "error", err, "user_id", p.ID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
