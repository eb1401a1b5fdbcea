// Package middleware provides gin middleware: API key auth with per-key
// rate limiting, admin JWT auth and request observability.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// extractAPIKeySecret pulls the presented secret from the Authorization
// bearer header or the X-Api-Key header.
func extractAPIKeySecret(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.GetHeader(constants.HeaderAPIKey)
}

// RequireAPIKey validates the presented key, enforces its quota, and records
// usage after the handler runs. Invalid keys get 401, exhausted quotas 429
// with Retry-After. Rejections are reported to the event recorder.
func RequireAPIKey(
	manager *appservice.APIKeyManager,
	recorder service.EventRecorder,
	required constants.Permission,
	clk clock.Clock,
	log logger.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := extractAPIKeySecret(c)
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.ErrorResponse(errors.ErrUnauthorized("missing API key")))
			return
		}

		result := manager.Validate(c.Request.Context(), secret, required)
		if result.RateLimited {
			retryAfter := int(result.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

			recorder.LogEvent(c.Request.Context(),
				constants.EventRateLimitExceeded, constants.SeverityMedium,
				"api-key-auth", "API key quota exhausted", nil, requestContext(c))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.ErrorResponse(errors.New(errors.CodeRateLimitExceeded, http.StatusTooManyRequests, result.Reason)))
			return
		}
		if !result.Valid {
			recorder.LogEvent(c.Request.Context(),
				constants.EventUnauthorizedAccess, constants.SeverityMedium,
				"api-key-auth", result.Reason,
				map[string]interface{}{"path": c.FullPath()}, requestContext(c))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.ErrorResponse(errors.ErrUnauthorized(result.Reason)))
			return
		}

		c.Set(string(constants.ContextKeyAPIKeyID), result.Key.ID)
		c.Set(string(constants.ContextKeyOrganizationID), result.Key.OrganizationID)

		start := clk.Now()
		c.Next()

		manager.RecordUsage(c.Request.Context(), result.Key.ID, models.APIKeyUsage{
			Timestamp:      start,
			Endpoint:       c.FullPath(),
			Method:         c.Request.Method,
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			ResponseStatus: c.Writer.Status(),
			ResponseTime:   clk.Since(start),
		})
	}
}

func requestContext(c *gin.Context) *models.RequestContext {
	return &models.RequestContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
