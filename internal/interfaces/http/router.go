// Package http wires the gin engine: global middleware, route groups and
// the HTTP server lifecycle.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/internal/interfaces/http/handlers"
	"github.com/perimetra/sentinel/internal/interfaces/http/middleware"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// Router owns the gin engine and HTTP server.
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	server *http.Server

	health      *handlers.HealthHandler
	events      *handlers.EventHandler
	reports     *handlers.ReportHandler
	apiKeys     *handlers.APIKeyHandler
	mfa         *handlers.MFAHandler
	encKeys     *handlers.EncryptionKeyHandler
	diagnostics *handlers.DiagnosticsHandler

	keyManager *appservice.APIKeyManager
	recorder   service.EventRecorder
	metrics    *monitoring.Metrics
	clock      clock.Clock
}

// NewRouter creates the router with all handlers wired.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	health *handlers.HealthHandler,
	events *handlers.EventHandler,
	reports *handlers.ReportHandler,
	apiKeys *handlers.APIKeyHandler,
	mfa *handlers.MFAHandler,
	encKeys *handlers.EncryptionKeyHandler,
	diagnostics *handlers.DiagnosticsHandler,
	keyManager *appservice.APIKeyManager,
	recorder service.EventRecorder,
	metrics *monitoring.Metrics,
	clk clock.Clock,
) *Router {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Router{
		engine:      gin.New(),
		config:      cfg,
		logger:      log.WithComponent("http"),
		health:      health,
		events:      events,
		reports:     reports,
		apiKeys:     apiKeys,
		mfa:         mfa,
		encKeys:     encKeys,
		diagnostics: diagnostics,
		keyManager:  keyManager,
		recorder:    recorder,
		metrics:     metrics,
		clock:       clk,
	}
}

// SetupRoutes installs middleware and route groups.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(otel.Tracer("sentinel/http"), r.metrics))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderAPIKey, "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", constants.HeaderRetryAfter},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/healthz", r.health.Liveness)
	r.engine.GET("/readyz", r.health.Readiness)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.config.Monitoring.PprofEnabled && !r.config.Server.IsProduction() {
		pprof.Register(r.engine)
	}

	requireKey := func(p constants.Permission) gin.HandlerFunc {
		return middleware.RequireAPIKey(r.keyManager, r.recorder, p, r.clock, r.logger)
	}

	v1 := r.engine.Group("/api/v1")
	{
		security := v1.Group("/security")
		{
			security.POST("/mfa/challenge", r.mfa.Challenge)
			security.POST("/mfa/verify", r.mfa.Verify)

			events := security.Group("/events")
			{
				events.POST("", requireKey(constants.PermissionEventsWrite), r.events.LogEvent)
				events.GET("", requireKey(constants.PermissionEventsRead), r.events.ListEvents)
				events.POST("/:event_id/resolve", requireKey(constants.PermissionEventsWrite), r.events.ResolveEvent)
			}

			security.GET("/reports/audit", requireKey(constants.PermissionReportsRead), r.reports.GenerateAuditReport)

			encKeys := security.Group("/encryption-keys")
			encKeys.Use(requireKey(constants.PermissionKeysManage))
			{
				encKeys.POST("", r.encKeys.CreateKey)
				encKeys.GET("", r.encKeys.ListKeys)
				encKeys.GET("/:key_id", r.encKeys.GetKey)
				encKeys.PUT("/:key_id/rotate", r.encKeys.RotateKey)
				encKeys.DELETE("/:key_id", r.encKeys.DeleteKey)
			}

			tests := security.Group("/tests")
			tests.Use(requireKey(constants.PermissionAdmin))
			{
				tests.GET("", r.diagnostics.Catalog)
				tests.GET("/:test_id", r.diagnostics.Run)
			}
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdminJWT(r.config.AdminAuth, r.logger))
		{
			keys := admin.Group("/api-keys")
			{
				keys.POST("", r.apiKeys.CreateKey)
				keys.GET("", r.apiKeys.ListKeys)
				keys.GET("/:key_id", r.apiKeys.GetKey)
				keys.PATCH("/:key_id", r.apiKeys.UpdateKey)
				keys.DELETE("/:key_id", r.apiKeys.DeleteKey)
			}
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse(errors.ErrNotFound("the requested resource was not found")))
	})
}

// Engine exposes the gin engine, used by tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (r *Router) Start(ctx context.Context) error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.config.Server.ReadTimeout,
		WriteTimeout:   r.config.Server.WriteTimeout,
		IdleTimeout:    r.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info(ctx, "http server listening", logger.String("addr", addr))
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r.logger.Info(shutdownCtx, "shutting down http server")
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
