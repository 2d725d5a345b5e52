package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/domain/users"
	"partscatalog/internal/infrastructure/http/v1/dto"
)

// UserService is the part of users.Service the handler uses.
type UserService interface {
	Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	GetByPublicID(ctx context.Context, publicID string) (*users.User, error)
	ScheduleWelcomeEmail(ctx context.Context, publicID string) (string, error)
}

// UserHandler serves /api/common/users.
type UserHandler struct {
	*BaseHandler
	service UserService
}

// NewUserHandler creates a user handler.
func NewUserHandler(base *BaseHandler, service UserService) *UserHandler {
	return &UserHandler{BaseHandler: base, service: service}
}

// Register handles POST /users.
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	u, err := h.service.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromUser(u))
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	publicID := c.Param("id")
	u, err := h.service.GetByPublicID(c.Request.Context(), publicID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if u == nil {
		h.NotFound(c, users.EntityName, publicID)
		return
	}
	h.OK(c, dto.FromUser(u))
}

// WelcomeEmail handles POST /users/:id/welcome-email. The mail is sent by
// the worker; the response only acknowledges the job.
func (h *UserHandler) WelcomeEmail(c *gin.Context) {
	jobID, err := h.service.ScheduleWelcomeEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Accepted(c, dto.JobResponse{JobID: jobID, Status: "queued"})
}
