// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/security"
	"partscatalog/internal/infrastructure/http/v1/handlers"
	"partscatalog/internal/infrastructure/http/v1/middleware"
	"partscatalog/pkg/logger"
)

// RouterConfig holds everything the router wires into handlers. Optional
// services left nil keep their routes unregistered.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Production hides internal error messages
	Production bool

	// JWTValidator identifies callers; nil leaves every request anonymous
	JWTValidator middleware.JWTValidator

	// Flags gates optional route groups
	Flags security.FeatureFlagProvider

	// Idempotency stores Idempotency-Key results; nil disables replay
	Idempotency middleware.IdempotencyStore

	Manufacturers handlers.ManufacturerService
	Files         handlers.FileService
	FileMaxBytes  int64
	Analysis      handlers.AnalysisService
	Users         handlers.UserService

	// Database and Redis are probed by the health endpoints
	Database handlers.Pinger
	Redis    handlers.Pinger
}

// multipartOverhead allows for form fields and part headers around an upload.
const multipartOverhead = 1 << 20

// NewRouter creates and configures the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Flags == nil {
		cfg.Flags = security.NewStaticFlags(nil)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler(cfg.Production))
	router.Use(middleware.OptionalAuth(cfg.JWTValidator))
	router.Use(middleware.UserContext())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Redis)
	router.GET("/health", healthHandler.Detailed)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	base := handlers.NewBaseHandler()
	var write []gin.HandlerFunc
	if cfg.Idempotency != nil {
		write = append(write, middleware.Idempotency(cfg.Idempotency))
	}

	var upload []gin.HandlerFunc
	if cfg.Idempotency != nil {
		upload = append(upload, middleware.Idempotency(cfg.Idempotency, middleware.WithMaxBody(uploadBodyLimit(cfg.FileMaxBytes))))
	}

	api := router.Group("/api")
	registerCoreRoutes(api.Group("/core"), base, cfg, write)
	registerCommonRoutes(api.Group("/common"), base, cfg, write, upload)

	return router
}

// registerCoreRoutes registers the catalog endpoints.
func registerCoreRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig, write []gin.HandlerFunc) {
	if cfg.Manufacturers == nil {
		return
	}

	h := handlers.NewManufacturerHandler(base, cfg.Manufacturers)
	group := rg.Group("/manufacturers")
	group.GET("/slug/:slug", h.GetBySlug)
	group.POST("/batch/status", with(write, h.BatchStatus)...)
	RegisterCatalogRoutes(group, h, write...)
	group.PATCH("/:id/status", h.ToggleStatus)
	group.POST("/:id/verify", with(write, h.Verify)...)
}

// registerCommonRoutes registers files, AI analysis and users.
func registerCommonRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig, write, upload []gin.HandlerFunc) {
	if cfg.Files != nil {
		h := handlers.NewFileHandler(base, cfg.Files, cfg.FileMaxBytes)
		group := rg.Group("/files", middleware.RequireFeature(cfg.Flags, security.FlagFileUploads))
		group.POST("", with(upload, h.Upload)...)
		group.GET("/:id", h.Get)
		group.GET("/:id/url", h.URL)
		group.DELETE("/:id", h.Delete)
	}

	if cfg.Analysis != nil {
		h := handlers.NewAnalysisHandler(base, cfg.Analysis)
		group := rg.Group("/ai-analysis", middleware.RequireFeature(cfg.Flags, security.FlagAIAnalysis))
		group.POST("/parts-catalog", h.PartsCatalog)
	}

	if cfg.Users != nil {
		h := handlers.NewUserHandler(base, cfg.Users)
		group := rg.Group("/users")
		group.POST("", with(write, h.Register)...)
		group.GET("/:id", h.Get)
		group.POST("/:id/welcome-email", with(write, h.WelcomeEmail)...)
	}
}

// uploadBodyLimit is the idempotency body cap for file uploads; an unlimited
// upload size leaves it uncapped.
func uploadBodyLimit(fileMaxBytes int64) int64 {
	if fileMaxBytes <= 0 {
		return 0
	}
	return fileMaxBytes + multipartOverhead
}
