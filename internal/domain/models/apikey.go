package models

import (
	"time"

	"github.com/perimetra/sentinel/pkg/constants"
)

// RateLimit is a per-key quota: at most Requests calls per Window.
type RateLimit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// APIKey is an issued credential. The plaintext secret exists only at
// creation time; KeyHash holds its SHA-256 digest and is never serialized.
type APIKey struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	OrganizationID string                 `json:"organization_id"`
	KeyHash        string                 `json:"-"`
	Permissions    []constants.Permission `json:"permissions"`
	IsActive       bool                   `json:"is_active"`
	CreatedAt      time.Time              `json:"created_at"`
	LastUsedAt     time.Time              `json:"last_used_at,omitzero"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	RateLimit      RateLimit              `json:"rate_limit"`
	UsageCount     int64                  `json:"usage_count"`
}

// HasPermission reports whether the key grants the permission, either
// directly or through the admin capability.
func (k *APIKey) HasPermission(p constants.Permission) bool {
	for _, have := range k.Permissions {
		if have == p || have == constants.PermissionAdmin {
			return true
		}
	}
	return false
}

// Expired reports whether the key's expiry, if set, has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// APIKeyUsage is one authenticated call recorded against a key. Append-only;
// pruned by the retention sweep.
type APIKeyUsage struct {
	Timestamp      time.Time     `json:"timestamp"`
	Endpoint       string        `json:"endpoint"`
	Method         string        `json:"method"`
	IPAddress      string        `json:"ip_address,omitempty"`
	UserAgent      string        `json:"user_agent,omitempty"`
	ResponseStatus int           `json:"response_status"`
	ResponseTime   time.Duration `json:"response_time"`
}

// Validation reason strings returned to callers. These are part of the API
// surface: handlers branch on RateLimited, clients on the reason text.
const (
	ReasonInvalidKey             = "Invalid API key"
	ReasonInactiveKey            = "API key is inactive"
	ReasonExpiredKey             = "API key has expired"
	ReasonInsufficientPermission = "Insufficient permissions"
	ReasonRateLimited            = "Rate limit exceeded"
)

// ValidationResult is the discriminated outcome of validating a presented
// secret. It is a value, never an error: invalid keys are an expected case.
type ValidationResult struct {
	Valid       bool
	Key         *APIKey
	Reason      string
	RateLimited bool

	// RetryAfter is set when RateLimited, for the Retry-After header.
	RetryAfter time.Duration
}

// RateLimitStatus is the outcome of a quota check.
type RateLimitStatus struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
