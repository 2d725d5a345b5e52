// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/security"
	"partscatalog/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON decodes the body and runs the request's ozzo rules when it has any.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("Invalid request body").WithDetail("error", err.Error()))
		return false
	}
	if v, ok := obj.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			h.Error(c, apperror.FromValidation(err))
			return false
		}
	}
	return true
}

// Error registers err on the gin context and aborts. The JSON body is
// written by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ActorID is the identified caller, empty for anonymous requests.
func (h *BaseHandler) ActorID(c *gin.Context) string {
	return security.GetUserID(c.Request.Context())
}

// Created sends 201 and stores the body for idempotent replay.
func (h *BaseHandler) Created(c *gin.Context, body any) {
	middleware.CompleteIdempotency(c, http.StatusCreated, body)
	c.JSON(http.StatusCreated, body)
}

// Accepted sends 202 and stores the body for idempotent replay.
func (h *BaseHandler) Accepted(c *gin.Context, body any) {
	middleware.CompleteIdempotency(c, http.StatusAccepted, body)
	c.JSON(http.StatusAccepted, body)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, body any) {
	middleware.CompleteIdempotency(c, http.StatusOK, body)
	c.JSON(http.StatusOK, body)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// NotFound aborts with the entity's 404.
func (h *BaseHandler) NotFound(c *gin.Context, entity, id string) {
	h.Error(c, apperror.NewNotFound(entity, id))
}
