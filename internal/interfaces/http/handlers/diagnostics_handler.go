package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

// DiagnosticsHandler runs the built-in self-checks.
type DiagnosticsHandler struct {
	diagnostics *appservice.DiagnosticsService
	logger      logger.Logger
}

func NewDiagnosticsHandler(diagnostics *appservice.DiagnosticsService, log logger.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{diagnostics: diagnostics, logger: log}
}

// Catalog lists available diagnostics.
// GET /api/v1/security/tests
func (h *DiagnosticsHandler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, dto.DiagnosticsCatalogResponse{Tests: h.diagnostics.Catalog()})
}

// Run executes one named diagnostic.
// GET /api/v1/security/tests/:test_id
func (h *DiagnosticsHandler) Run(c *gin.Context) {
	result, err := h.diagnostics.Run(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		respondError(c, h.logger, err, "run_diagnostic")
		return
	}
	c.JSON(http.StatusOK, result)
}
