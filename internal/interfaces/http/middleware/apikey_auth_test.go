package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

type nopRecorder struct{}

func (nopRecorder) LogEvent(
	_ context.Context,
	eventType constants.EventType,
	severity constants.Severity,
	source, description string,
	metadata map[string]interface{},
	reqCtx *models.RequestContext,
) *models.SecurityEvent {
	return models.NewSecurityEvent(time.Now(), eventType, severity, source, description, metadata, reqCtx)
}

func newAuthFixture(t *testing.T) (*service.APIKeyManager, *clock.Mock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	metrics := monitoring.NewMetricsFor(prometheus.NewRegistry())
	manager := service.NewAPIKeyManager(config.Default(), nil, metrics, clk, logger.NewNopLogger())

	r := gin.New()
	r.GET("/protected",
		RequireAPIKey(manager, nopRecorder{}, constants.PermissionEventsRead, clk, logger.NewNopLogger()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"org": c.GetString(string(constants.ContextKeyOrganizationID)),
			})
		})
	return manager, clk, r
}

func TestRequireAPIKeyAcceptsValidKey(t *testing.T) {
	manager, _, r := newAuthFixture(t)

	key, secret, err := manager.CreateKey(context.Background(), "k", "org-1",
		[]constants.Permission{constants.PermissionEventsRead}, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(constants.HeaderAPIKey, secret)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "org-1")

	// The middleware records usage after the handler runs.
	history := manager.UsageHistory(context.Background(), key.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "/protected", history[0].Endpoint)
	assert.Equal(t, http.StatusOK, history[0].ResponseStatus)
}

func TestRequireAPIKeyAcceptsBearerHeader(t *testing.T) {
	manager, _, r := newAuthFixture(t)

	_, secret, err := manager.CreateKey(context.Background(), "k", "org-1",
		[]constants.Permission{constants.PermissionEventsRead}, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAPIKeyRejectsMissingAndInvalid(t *testing.T) {
	_, _, r := newAuthFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(constants.HeaderAPIKey, "sentinel_bogus")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ReasonInvalidKey)
}

func TestRequireAPIKeyRejectsInsufficientPermission(t *testing.T) {
	manager, _, r := newAuthFixture(t)

	_, secret, err := manager.CreateKey(context.Background(), "k", "org-1",
		[]constants.Permission{constants.PermissionReportsRead}, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(constants.HeaderAPIKey, secret)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ReasonInsufficientPermission)
}

func TestRequireAPIKeyRateLimits(t *testing.T) {
	manager, clk, r := newAuthFixture(t)

	limit := &models.RateLimit{Requests: 2, Window: time.Minute}
	_, secret, err := manager.CreateKey(context.Background(), "k", "org-1",
		[]constants.Permission{constants.PermissionEventsRead}, nil, limit)
	require.NoError(t, err)

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(constants.HeaderAPIKey, secret)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRetryAfter))
	assert.Contains(t, w.Body.String(), models.ReasonRateLimited)

	// The window reopens after the oldest usage ages out.
	clk.Add(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do().Code)
}
