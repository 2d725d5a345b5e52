package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/infrastructure/http/v1/dto"
	"partscatalog/pkg/logger"
)

const genericInternalMessage = "Internal server error"

// ErrorHandler middleware transforms errors into consistent JSON responses.
// In production unexpected errors carry a generic message; elsewhere the
// cause is shown to ease debugging.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		status, body := errorResponse(c, c.Errors.Last().Err, production)
		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

func errorResponse(c *gin.Context, err error, production bool) (int, dto.ErrorResponse) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err)
	}

	body := dto.ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		if ok && appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}
		if appErr.Code == apperror.CodeInternal {
			body.Error = genericInternalMessage
			if !production && appErr.Err != nil {
				body.Error = appErr.Err.Error()
			}
			body.Details = map[string]any{"requestId": c.GetString(requestIDKey)}
		}
	} else if appErr.Err != nil {
		logger.Debug(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
	}

	return appErr.HTTPStatus, body
}
