package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// EncryptionKeyHandler exposes the key lifecycle surface.
type EncryptionKeyHandler struct {
	keys   *appservice.EncryptionKeyService
	logger logger.Logger
}

func NewEncryptionKeyHandler(keys *appservice.EncryptionKeyService, log logger.Logger) *EncryptionKeyHandler {
	return &EncryptionKeyHandler{keys: keys, logger: log}
}

// CreateKey provisions a key under an alias.
// POST /api/v1/security/encryption-keys
func (h *EncryptionKeyHandler) CreateKey(c *gin.Context) {
	var req dto.CreateEncryptionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "create_encryption_key")
		return
	}

	key, err := h.keys.CreateKey(c.Request.Context(), req.Alias)
	if err != nil {
		respondError(c, h.logger, err, "create_encryption_key")
		return
	}
	c.JSON(http.StatusCreated, key)
}

// ListKeys returns metadata for all keys.
// GET /api/v1/security/encryption-keys
func (h *EncryptionKeyHandler) ListKeys(c *gin.Context) {
	keys := h.keys.ListKeys(c.Request.Context())
	c.JSON(http.StatusOK, dto.EncryptionKeyListResponse{Keys: keys, Count: len(keys)})
}

// GetKey returns one key's metadata.
// GET /api/v1/security/encryption-keys/:key_id
func (h *EncryptionKeyHandler) GetKey(c *gin.Context) {
	key, err := h.keys.GetKey(c.Request.Context(), c.Param("key_id"))
	if err != nil {
		respondError(c, h.logger, err, "get_encryption_key")
		return
	}
	c.JSON(http.StatusOK, key)
}

// RotateKey replaces the key's material with a new version.
// PUT /api/v1/security/encryption-keys/:key_id/rotate
func (h *EncryptionKeyHandler) RotateKey(c *gin.Context) {
	key, err := h.keys.RotateKey(c.Request.Context(), c.Param("key_id"))
	if err != nil {
		respondError(c, h.logger, err, "rotate_encryption_key")
		return
	}
	c.JSON(http.StatusOK, key)
}

// DeleteKey removes a key. Active keys require force in the body.
// DELETE /api/v1/security/encryption-keys/:key_id
func (h *EncryptionKeyHandler) DeleteKey(c *gin.Context) {
	var req dto.DeleteEncryptionKeyRequest
	// The body is optional; absence means force=false.
	_ = c.ShouldBindJSON(&req)

	if err := h.keys.DeleteKey(c.Request.Context(), c.Param("key_id"), req.Force); err != nil {
		respondError(c, h.logger, err, "delete_encryption_key")
		return
	}
	c.Status(http.StatusNoContent)
}
