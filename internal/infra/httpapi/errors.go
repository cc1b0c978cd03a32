package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/risingstars/video-pipeline/internal/apperror"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toAppError(err error) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Wrap(err, apperror.ErrInternal)
}

func abortWithError(c *gin.Context, err error) {
	appErr := toAppError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, errorResponse{Error: appErr.Code, Message: appErr.Message})
}

// respondError writes the client-safe form of err. Causes are logged, never
// returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Internal != nil {
		h.logger.Error("request failed",
			zap.String("code", appErr.Code),
			zap.String("route", c.FullPath()),
			zap.Error(appErr.Internal),
		)
	} else {
		h.logger.Warn("request rejected", zap.String("code", appErr.Code), zap.String("route", c.FullPath()))
	}
	c.JSON(appErr.StatusCode, errorResponse{Error: appErr.Code, Message: appErr.Message})
}
