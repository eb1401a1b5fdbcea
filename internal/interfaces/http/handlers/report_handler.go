package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// ReportHandler generates audit reports over the event store.
type ReportHandler struct {
	audit  *appservice.SecurityAuditService
	logger logger.Logger
}

func NewReportHandler(audit *appservice.SecurityAuditService, log logger.Logger) *ReportHandler {
	return &ReportHandler{audit: audit, logger: log}
}

// GenerateAuditReport aggregates events over the requested period.
// GET /api/v1/security/reports/audit?start=...&end=...
// Defaults to the last 7 days when no period is given.
func (h *ReportHandler) GenerateAuditReport(c *gin.Context) {
	end := time.Now()
	start := end.AddDate(0, 0, -7)

	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, h.logger, errors.ErrInvalidRequest("start must be RFC 3339"), "audit_report")
			return
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, h.logger, errors.ErrInvalidRequest("end must be RFC 3339"), "audit_report")
			return
		}
		end = t
	}
	if end.Before(start) {
		respondError(c, h.logger, errors.ErrInvalidRequest("end must not precede start"), "audit_report")
		return
	}

	report := h.audit.GenerateReport(c.Request.Context(), start, end)
	c.JSON(http.StatusOK, report)
}
