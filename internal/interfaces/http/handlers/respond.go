// Package handlers implements the gin HTTP handlers for the Sentinel API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// respondError maps an error to its HTTP status and wire shape. Unexpected
// errors become a generic 500; internals never leak to clients.
func respondError(c *gin.Context, log logger.Logger, err error, operation string) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		log.Error(c.Request.Context(), "unexpected error", err, logger.String("operation", operation))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse(err))
		return
	}

	log.Warn(c.Request.Context(), "request failed",
		logger.String("operation", operation),
		logger.String("error_code", string(appErr.Code())),
		logger.String("error", appErr.Error()))
	c.JSON(appErr.HTTPStatus(), dto.ErrorResponse(err))
}
