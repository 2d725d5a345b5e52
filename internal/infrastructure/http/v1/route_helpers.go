package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler is the CRUD surface every catalog handler exposes.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// CatalogSearchHandler is implemented by catalogs with a quick search.
type CatalogSearchHandler interface {
	Search(c *gin.Context)
}

// CatalogHistoryHandler is implemented by catalogs with an audit trail.
type CatalogHistoryHandler interface {
	History(c *gin.Context)
}

// RegisterCatalogRoutes registers the standard CRUD routes for a catalog,
// plus search and history when the handler supports them. Mutating routes
// get the write middleware (idempotency) in front of the handler.
//
// Usage:
//
//	handler := handlers.NewManufacturerHandler(base, service)
//	RegisterCatalogRoutes(core.Group("/manufacturers"), handler, idem)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, write ...gin.HandlerFunc) {
	// Static segments go first so they are not read as an :id.
	if s, ok := handler.(CatalogSearchHandler); ok {
		group.GET("/search", s.Search)
	}

	group.GET("", handler.List)
	group.POST("", with(write, handler.Create)...)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)

	if h, ok := handler.(CatalogHistoryHandler); ok {
		group.GET("/:id/history", h.History)
	}
}

// with appends the handler after the middleware chain.
func with(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}
