package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// EventHandler exposes the security event store over HTTP.
type EventHandler struct {
	audit  *appservice.SecurityAuditService
	logger logger.Logger
}

func NewEventHandler(audit *appservice.SecurityAuditService, log logger.Logger) *EventHandler {
	return &EventHandler{audit: audit, logger: log}
}

// LogEvent records a new security event.
// POST /api/v1/security/events
func (h *EventHandler) LogEvent(c *gin.Context) {
	var req dto.LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "log_event")
		return
	}

	severity := constants.Severity(req.Severity)
	if !constants.ValidSeverity(severity) {
		respondError(c, h.logger, errors.ErrInvalidRequest("unknown severity: "+req.Severity), "log_event")
		return
	}

	reqCtx := &models.RequestContext{
		UserID:         req.UserID,
		OrganizationID: organizationID(c),
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	}
	event := h.audit.LogEvent(c.Request.Context(),
		constants.EventType(req.Type), severity, req.Source, req.Description, req.Metadata, reqCtx)

	c.JSON(http.StatusCreated, event)
}

// ListEvents returns events matching the query filters, newest first.
// GET /api/v1/security/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	filter, err := eventFilterFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err, "list_events")
		return
	}

	events := h.audit.Events(c.Request.Context(), filter)
	c.JSON(http.StatusOK, dto.EventListResponse{Events: events, Count: len(events)})
}

// ResolveEvent marks an event resolved.
// POST /api/v1/security/events/:event_id/resolve
func (h *EventHandler) ResolveEvent(c *gin.Context) {
	id := c.Param("event_id")
	if !h.audit.Resolve(c.Request.Context(), id) {
		respondError(c, h.logger, errors.ErrNotFound("security event not found"), "resolve_event")
		return
	}
	c.JSON(http.StatusOK, dto.ResolveEventResponse{Resolved: true})
}

func eventFilterFromQuery(c *gin.Context) (models.EventFilter, error) {
	filter := models.EventFilter{
		Type:           constants.EventType(c.Query("type")),
		Severity:       constants.Severity(c.Query("severity")),
		UserID:         c.Query("user_id"),
		OrganizationID: c.Query("organization_id"),
	}

	if v := c.Query("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.ErrInvalidRequest("resolved must be a boolean")
		}
		filter.Resolved = &resolved
	}
	if v := c.Query("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.ErrInvalidRequest("start must be RFC 3339")
		}
		filter.Start = start
	}
	if v := c.Query("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.ErrInvalidRequest("end must be RFC 3339")
		}
		filter.End = end
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errors.ErrInvalidRequest("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// organizationID returns the key's organization when the request came
// through API key auth.
func organizationID(c *gin.Context) string {
	if v, ok := c.Get(string(constants.ContextKeyOrganizationID)); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
