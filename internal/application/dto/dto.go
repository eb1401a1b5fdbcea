// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/errors"
)

// LogEventRequest reports a security-relevant occurrence.
type LogEventRequest struct {
	Type        string                 `json:"type" binding:"required"`
	Severity    string                 `json:"severity" binding:"required"`
	Source      string                 `json:"source" binding:"required"`
	Description string                 `json:"description" binding:"required"`
	Metadata    map[string]interface{} `json:"metadata"`
	UserID      string                 `json:"user_id"`
}

// EventListResponse wraps a page of events.
type EventListResponse struct {
	Events []models.SecurityEvent `json:"events"`
	Count  int                    `json:"count"`
}

// ResolveEventResponse reports the outcome of a resolve call.
type ResolveEventResponse struct {
	Resolved bool `json:"resolved"`
}

// RateLimitSpec is the wire shape of a per-key quota.
type RateLimitSpec struct {
	Requests      int `json:"requests" binding:"required,gt=0"`
	WindowSeconds int `json:"window_seconds" binding:"required,gt=0"`
}

// CreateAPIKeyRequest issues a new API key.
type CreateAPIKeyRequest struct {
	Name           string         `json:"name" binding:"required"`
	OrganizationID string         `json:"organization_id"`
	Permissions    []string       `json:"permissions" binding:"required,min=1"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	RateLimit      *RateLimitSpec `json:"rate_limit"`
}

// CreateAPIKeyResponse returns the key metadata plus the plaintext secret,
// shown exactly once.
type CreateAPIKeyResponse struct {
	Key    models.APIKey `json:"key"`
	Secret string        `json:"secret"`
}

// APIKeyListResponse wraps the admin key listing.
type APIKeyListResponse struct {
	Keys  []models.APIKey `json:"keys"`
	Count int             `json:"count"`
}

// UpdateAPIKeyRequest toggles a key's active state.
type UpdateAPIKeyRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// MFAVerifyRequest submits a verification code for a device.
type MFAVerifyRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Type     string `json:"type"`
}

// MFAVerifyResponse returns fresh backup codes on success.
type MFAVerifyResponse struct {
	Success     bool     `json:"success"`
	BackupCodes []string `json:"backup_codes"`
}

// MFAChallengeRequest asks for a new verification code.
type MFAChallengeRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Type     string `json:"type"`
}

// CreateEncryptionKeyRequest provisions a key under an alias.
type CreateEncryptionKeyRequest struct {
	Alias string `json:"alias" binding:"required"`
}

// DeleteEncryptionKeyRequest carries the force flag required for active keys.
type DeleteEncryptionKeyRequest struct {
	Force bool `json:"force"`
}

// EncryptionKeyListResponse wraps the key listing.
type EncryptionKeyListResponse struct {
	Keys  []models.EncryptionKey `json:"keys"`
	Count int                    `json:"count"`
}

// DiagnosticsCatalogResponse lists the available diagnostics.
type DiagnosticsCatalogResponse struct {
	Tests []string `json:"tests"`
}

// ErrorResponse converts an error to the wire error shape.
func ErrorResponse(err error) *errors.ErrorResponse {
	return errors.ToErrorResponse(err)
}
