package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/perimetra/sentinel/internal/application/dto"
	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

func extractBearer(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAdminJWT protects the admin surface with an HS256-signed JWT. The
// subject claim is placed in the gin context for audit logging.
func RequireAdminJWT(cfg config.AdminAuthConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.ErrorResponse(errors.ErrUnauthorized("missing bearer token")))
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, opts...)
		if err != nil || !token.Valid {
			log.Warn(c.Request.Context(), "admin token rejected", logger.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.ErrorResponse(errors.ErrUnauthorized("invalid token")))
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, _ := claims["sub"].(string); sub != "" {
				c.Set(string(constants.ContextKeySubject), sub)
			}
		}
		c.Next()
	}
}
