package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/domain"
	"partscatalog/internal/domain/catalogs/manufacturer"
	"partscatalog/internal/infrastructure/http/v1/dto"
	"partscatalog/pkg/logger"
)

// ManufacturerService is the part of manufacturer.Service the handler uses.
type ManufacturerService interface {
	List(ctx context.Context, q manufacturer.ListQuery) (*domain.ListResult[*manufacturer.Manufacturer], error)
	Search(ctx context.Context, query string, limit int) ([]*manufacturer.Manufacturer, error)
	GetByPublicID(ctx context.Context, publicID string) (*manufacturer.Manufacturer, error)
	GetBySlug(ctx context.Context, slug string) (*manufacturer.Manufacturer, error)
	Create(ctx context.Context, in manufacturer.CreateInput, actorID string) (*manufacturer.Manufacturer, error)
	UpdateByPublicID(ctx context.Context, publicID string, in manufacturer.UpdateInput, actorID string) (*manufacturer.Manufacturer, error)
	ToggleStatus(ctx context.Context, publicID string, isActive bool, actorID string) (*manufacturer.Manufacturer, error)
	Verify(ctx context.Context, publicID string, actorID string) (*manufacturer.Manufacturer, error)
	DeleteByPublicID(ctx context.Context, publicID string) (manufacturer.DeleteResult, error)
	BatchUpdateStatus(ctx context.Context, publicIDs []string, isActive bool, actorID string) manufacturer.BatchResult
	History(ctx context.Context, publicID string, limit int) ([]domain.AuditRecord, error)
}

// ManufacturerHandler serves /api/core/manufacturers.
type ManufacturerHandler struct {
	*BaseHandler
	service ManufacturerService
}

// NewManufacturerHandler creates a new manufacturer handler.
func NewManufacturerHandler(base *BaseHandler, service ManufacturerService) *ManufacturerHandler {
	return &ManufacturerHandler{BaseHandler: base, service: service}
}

// List handles GET /manufacturers.
func (h *ManufacturerHandler) List(c *gin.Context) {
	q, err := dto.ParseListManufacturersQuery(c.Request.URL.Query())
	if err != nil {
		h.Error(c, apperror.FromValidation(err))
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ToListQuery())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ManufacturerListResponse{
		Data:       dto.FromManufacturers(result.Items),
		Pagination: result.Pagination,
	})
}

// Search handles GET /manufacturers/search?q=&limit=.
func (h *ManufacturerHandler) Search(c *gin.Context) {
	limit, err := dto.ParseOptionalInt(c.Query("limit"), manufacturer.DefaultSearchLimit)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("limit", c.Query("limit")))
		return
	}

	items, err := h.service.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DataResponse[[]dto.ManufacturerResponse]{Data: dto.FromManufacturers(items)})
}

// Get handles GET /manufacturers/:id.
func (h *ManufacturerHandler) Get(c *gin.Context) {
	publicID := c.Param("id")
	m, err := h.service.GetByPublicID(c.Request.Context(), publicID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if m == nil {
		h.NotFound(c, manufacturer.EntityName, publicID)
		return
	}
	h.OK(c, dto.FromManufacturerDetail(m))
}

// GetBySlug handles GET /manufacturers/slug/:slug.
func (h *ManufacturerHandler) GetBySlug(c *gin.Context) {
	slug := strings.ToLower(c.Param("slug"))
	m, err := h.service.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		h.Error(c, err)
		return
	}
	if m == nil {
		h.NotFound(c, manufacturer.EntityName, slug)
		return
	}
	h.OK(c, dto.FromManufacturerDetail(m))
}

// History handles GET /manufacturers/:id/history.
func (h *ManufacturerHandler) History(c *gin.Context) {
	limit, err := dto.ParseOptionalInt(c.Query("limit"), manufacturer.DefaultLimit)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("limit", c.Query("limit")))
		return
	}

	records, err := h.service.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DataResponse[[]domain.AuditRecord]{Data: records})
}

// Create handles POST /manufacturers.
func (h *ManufacturerHandler) Create(c *gin.Context) {
	var req dto.CreateManufacturerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := h.service.Create(c.Request.Context(), req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromManufacturer(m))
}

// Update handles PUT /manufacturers/:id.
func (h *ManufacturerHandler) Update(c *gin.Context) {
	var req dto.UpdateManufacturerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	publicID := c.Param("id")
	m, err := h.service.UpdateByPublicID(c.Request.Context(), publicID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if m == nil {
		h.NotFound(c, manufacturer.EntityName, publicID)
		return
	}
	h.OK(c, dto.FromManufacturerDetail(m))
}

// ToggleStatus handles PATCH /manufacturers/:id/status.
func (h *ManufacturerHandler) ToggleStatus(c *gin.Context) {
	var req dto.ToggleStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	publicID := c.Param("id")
	m, err := h.service.ToggleStatus(c.Request.Context(), publicID, *req.IsActive, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if m == nil {
		h.NotFound(c, manufacturer.EntityName, publicID)
		return
	}
	h.OK(c, dto.FromManufacturer(m))
}

// Verify handles POST /manufacturers/:id/verify.
func (h *ManufacturerHandler) Verify(c *gin.Context) {
	publicID := c.Param("id")
	m, err := h.service.Verify(c.Request.Context(), publicID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if m == nil {
		h.NotFound(c, manufacturer.EntityName, publicID)
		return
	}
	h.OK(c, dto.FromManufacturer(m))
}

// BatchStatus handles POST /manufacturers/batch/status. Individual failures
// are reported in the body, never as an error status.
func (h *ManufacturerHandler) BatchStatus(c *gin.Context) {
	var req dto.BatchStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result := h.service.BatchUpdateStatus(c.Request.Context(), req.IDs, *req.IsActive, h.ActorID(c))
	h.OK(c, result)
}

// Delete handles DELETE /manufacturers/:id. Answers 204 whether or not the
// manufacturer existed.
func (h *ManufacturerHandler) Delete(c *gin.Context) {
	result, err := h.service.DeleteByPublicID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	if !result.Deleted {
		logger.Debug(c.Request.Context(), "delete of missing manufacturer", "id", c.Param("id"))
	}
	h.NoContent(c)
}
