package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// APIKeyHandler exposes the admin key management surface. All routes are
// behind JWT middleware.
type APIKeyHandler struct {
	manager *appservice.APIKeyManager
	logger  logger.Logger
}

func NewAPIKeyHandler(manager *appservice.APIKeyManager, log logger.Logger) *APIKeyHandler {
	return &APIKeyHandler{manager: manager, logger: log}
}

// CreateKey issues a new API key. The secret appears only in this response.
// POST /api/v1/admin/api-keys
func (h *APIKeyHandler) CreateKey(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "create_api_key")
		return
	}

	permissions := make([]constants.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		permissions = append(permissions, constants.Permission(p))
	}

	var rateLimit *models.RateLimit
	if req.RateLimit != nil {
		rateLimit = &models.RateLimit{
			Requests: req.RateLimit.Requests,
			Window:   time.Duration(req.RateLimit.WindowSeconds) * time.Second,
		}
	}

	key, secret, err := h.manager.CreateKey(c.Request.Context(),
		req.Name, req.OrganizationID, permissions, req.ExpiresAt, rateLimit)
	if err != nil {
		respondError(c, h.logger, err, "create_api_key")
		return
	}

	c.JSON(http.StatusCreated, dto.CreateAPIKeyResponse{Key: *key, Secret: secret})
}

// ListKeys returns all keys, optionally for one organization.
// GET /api/v1/admin/api-keys?organization_id=...
func (h *APIKeyHandler) ListKeys(c *gin.Context) {
	keys := h.manager.ListKeys(c.Request.Context(), c.Query("organization_id"))
	c.JSON(http.StatusOK, dto.APIKeyListResponse{Keys: keys, Count: len(keys)})
}

// GetKey returns one key's metadata.
// GET /api/v1/admin/api-keys/:key_id
func (h *APIKeyHandler) GetKey(c *gin.Context) {
	key := h.manager.GetKey(c.Request.Context(), c.Param("key_id"))
	if key == nil {
		respondError(c, h.logger, errors.ErrNotFound("api key not found"), "get_api_key")
		return
	}
	c.JSON(http.StatusOK, key)
}

// UpdateKey toggles a key's active state.
// PATCH /api/v1/admin/api-keys/:key_id
func (h *APIKeyHandler) UpdateKey(c *gin.Context) {
	var req dto.UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "update_api_key")
		return
	}

	if err := h.manager.SetActive(c.Request.Context(), c.Param("key_id"), *req.IsActive); err != nil {
		respondError(c, h.logger, err, "update_api_key")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteKey removes a key and its usage history.
// DELETE /api/v1/admin/api-keys/:key_id
func (h *APIKeyHandler) DeleteKey(c *gin.Context) {
	if err := h.manager.DeleteKey(c.Request.Context(), c.Param("key_id")); err != nil {
		respondError(c, h.logger, err, "delete_api_key")
		return
	}
	c.Status(http.StatusNoContent)
}
