package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perimetra/sentinel/internal/application/dto"
	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// MFAHandler exposes challenge issuance and verification.
type MFAHandler struct {
	mfa    *appservice.MFAService
	logger logger.Logger
}

func NewMFAHandler(mfa *appservice.MFAService, log logger.Logger) *MFAHandler {
	return &MFAHandler{mfa: mfa, logger: log}
}

// Challenge issues a new verification code for a device.
// POST /api/v1/security/mfa/challenge
func (h *MFAHandler) Challenge(c *gin.Context) {
	var req dto.MFAChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "mfa_challenge")
		return
	}

	// The code is delivered out of band in production; it is never part of
	// the HTTP response.
	if _, err := h.mfa.IssueChallenge(c.Request.Context(), req.DeviceID, req.Type); err != nil {
		respondError(c, h.logger, err, "mfa_challenge")
		return
	}
	c.Status(http.StatusAccepted)
}

// Verify checks a submitted code and returns backup codes on success.
// POST /api/v1/security/mfa/verify
func (h *MFAHandler) Verify(c *gin.Context) {
	var req dto.MFAVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.ErrInvalidRequest(err.Error()), "mfa_verify")
		return
	}

	codes, err := h.mfa.Verify(c.Request.Context(), req.DeviceID, req.Code, req.Type)
	if err != nil {
		respondError(c, h.logger, err, "mfa_verify")
		return
	}
	c.JSON(http.StatusOK, dto.MFAVerifyResponse{Success: true, BackupCodes: codes})
}
