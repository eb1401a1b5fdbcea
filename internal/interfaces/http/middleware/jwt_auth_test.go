package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

const testJWTSecret = "test-admin-secret"

func signToken(t *testing.T, secret, issuer string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "ops@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newJWTRouter(cfg config.AdminAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireAdminJWT(cfg, logger.NewNopLogger()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": c.GetString(string(constants.ContextKeySubject))})
	})
	return r
}

func TestRequireAdminJWTAcceptsValidToken(t *testing.T) {
	r := newJWTRouter(config.AdminAuthConfig{JWTSecret: testJWTSecret})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, ""))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops@example.com")
}

func TestRequireAdminJWTRejectsBadSignature(t *testing.T) {
	r := newJWTRouter(config.AdminAuthConfig{JWTSecret: testJWTSecret})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", ""))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminJWTRejectsMissingToken(t *testing.T) {
	r := newJWTRouter(config.AdminAuthConfig{JWTSecret: testJWTSecret})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminJWTChecksIssuer(t *testing.T) {
	r := newJWTRouter(config.AdminAuthConfig{JWTSecret: testJWTSecret, Issuer: "sentinel"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, "someone-else"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, "sentinel"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
