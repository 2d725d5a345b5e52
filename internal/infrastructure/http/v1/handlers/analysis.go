package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/domain/analysis"
)

// AnalysisService is the part of analysis.Service the handler uses.
type AnalysisService interface {
	AnalyzePartsCatalog(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// AnalysisHandler serves /api/common/ai-analysis.
type AnalysisHandler struct {
	*BaseHandler
	service AnalysisService
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(base *BaseHandler, service AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{BaseHandler: base, service: service}
}

// PartsCatalog handles POST /ai-analysis/parts-catalog.
func (h *AnalysisHandler) PartsCatalog(c *gin.Context) {
	var req analysis.Request
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.AnalyzePartsCatalog(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
