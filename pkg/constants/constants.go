// Package constants defines shared enumerations and defaults for the
// Sentinel security monitor.
package constants

import "time"

// ================================================================================
// Security Event Taxonomy
// ================================================================================

// EventType enumerates the categories of security events the monitor tracks.
type EventType string

const (
	EventUnauthorizedAccess EventType = "unauthorized-access"
	EventRateLimitExceeded  EventType = "rate-limit-exceeded"
	EventBruteForceAttempt  EventType = "brute-force-attempt"
	EventMaliciousRequest   EventType = "malicious-request"
	EventSuspiciousActivity EventType = "suspicious-activity"
	EventAnomalyDetected    EventType = "anomaly-detected"
	EventMFAFailure         EventType = "mfa-verification-failed"
	EventKeyLifecycle       EventType = "key-lifecycle"
)

// Severity is the ordered severity of a security event: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of a severity for comparisons.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ValidSeverity reports whether s is one of the known severities.
func ValidSeverity(s Severity) bool {
	return s.Rank() > 0
}

// ================================================================================
// API Key Permissions
// ================================================================================

// Permission is a capability granted to an API key.
type Permission string

const (
	PermissionEventsRead  Permission = "events:read"
	PermissionEventsWrite Permission = "events:write"
	PermissionReportsRead Permission = "reports:read"
	PermissionKeysManage  Permission = "keys:manage"
	PermissionAdmin       Permission = "admin"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for request-scoped context values.
type ContextKey string

const (
	ContextKeyRequestID      ContextKey = "request_id"
	ContextKeyAPIKeyID       ContextKey = "api_key_id"
	ContextKeyOrganizationID ContextKey = "organization_id"
	ContextKeySubject        ContextKey = "subject"
)

// ================================================================================
// Defaults
// ================================================================================

const (
	// DefaultMaxStoredEvents is the hard cap on in-memory events; appends
	// beyond it evict the oldest entries.
	DefaultMaxStoredEvents = 10000

	// DefaultEventRetention is the time-based retention window for events
	// and API key usage records.
	DefaultEventRetention = 30 * 24 * time.Hour

	// DefaultSweepInterval is how often the retention sweep and the
	// anomaly analysis run.
	DefaultSweepInterval = time.Hour

	// DefaultAnomalyWindow bounds the event window the anomaly pass scores.
	DefaultAnomalyWindow = 24 * time.Hour

	// DefaultRiskAlertThreshold is the risk score above which the anomaly
	// pass raises a new high-severity event.
	DefaultRiskAlertThreshold = 80

	// DefaultRateLimitRequests and DefaultRateLimitWindow are the per-key
	// quota applied when a key is created without an explicit limit.
	DefaultRateLimitRequests = 1000
	DefaultRateLimitWindow   = time.Hour

	// DefaultCachePruneThreshold is the in-process cache entry count past
	// which a full expired-entry sweep runs.
	DefaultCachePruneThreshold = 1000

	// DefaultMFAChallengeTTL bounds how long an issued MFA code stays valid.
	DefaultMFAChallengeTTL = 5 * time.Minute

	// MFABackupCodeCount is the number of single-use backup codes issued
	// after a successful verification.
	MFABackupCodeCount = 10
)

// HTTP header names used by the API key middleware.
const (
	HeaderAPIKey     = "X-Api-Key"
	HeaderRetryAfter = "Retry-After"
)

// APIKeyIDPrefix prefixes generated API key identifiers.
const APIKeyIDPrefix = "sk"
