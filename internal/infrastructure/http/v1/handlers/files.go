package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/domain/files"
	"partscatalog/internal/infrastructure/http/v1/dto"
)

// FileService is the part of files.Service the handler uses.
type FileService interface {
	Upload(ctx context.Context, in files.UploadInput, actorID string) (*files.File, error)
	GetByPublicID(ctx context.Context, publicID string) (*files.File, error)
	SignedURL(ctx context.Context, publicID string) (*files.DownloadURL, error)
	Delete(ctx context.Context, publicID string) (bool, error)
}

// FileHandler serves /api/common/files.
type FileHandler struct {
	*BaseHandler
	service  FileService
	maxBytes int64
}

// NewFileHandler creates a file handler. maxBytes bounds how much of an
// upload is read into memory.
func NewFileHandler(base *BaseHandler, service FileService, maxBytes int64) *FileHandler {
	return &FileHandler{BaseHandler: base, service: service, maxBytes: maxBytes}
}

// Upload handles POST /files (multipart field "file", optional "path" and "tags").
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewValidation("Multipart field \"file\" is required").WithCause(err))
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		h.Error(c, apperror.NewValidation("File is too large").WithDetail("maxBytes", h.maxBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.Error(c, apperror.NewValidation("Could not read upload").WithCause(err))
		return
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxBytes > 0 {
		r = io.LimitReader(f, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		h.Error(c, apperror.NewValidation("Could not read upload").WithCause(err))
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	form, err := c.MultipartForm()
	if err != nil {
		h.Error(c, apperror.NewValidation("Could not read upload form").WithCause(err))
		return
	}
	tags := dto.ParseTags(form.Value["tags"])

	uploaded, err := h.service.Upload(c.Request.Context(), files.UploadInput{
		Data:         data,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
		Path:         c.PostForm("path"),
		Tags:         tags,
	}, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, uploaded)
}

// Get handles GET /files/:id.
func (h *FileHandler) Get(c *gin.Context) {
	publicID := c.Param("id")
	f, err := h.service.GetByPublicID(c.Request.Context(), publicID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if f == nil {
		h.NotFound(c, files.EntityName, publicID)
		return
	}
	h.OK(c, f)
}

// URL handles GET /files/:id/url.
func (h *FileHandler) URL(c *gin.Context) {
	publicID := c.Param("id")
	u, err := h.service.SignedURL(c.Request.Context(), publicID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if u == nil {
		h.NotFound(c, files.EntityName, publicID)
		return
	}
	h.OK(c, u)
}

// Delete handles DELETE /files/:id.
func (h *FileHandler) Delete(c *gin.Context) {
	publicID := c.Param("id")
	deleted, err := h.service.Delete(c.Request.Context(), publicID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !deleted {
		h.NotFound(c, files.EntityName, publicID)
		return
	}
	h.NoContent(c)
}
