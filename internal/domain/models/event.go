package models

import (
	"maps"
	"time"

	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/utils"
)

// SecurityEvent is a single security-relevant occurrence. ID and Timestamp
// are fixed at creation; only Resolved may change afterwards, through an
// explicit resolve operation on the store.
type SecurityEvent struct {
	ID             string                 `json:"id"`
	Type           constants.EventType    `json:"type"`
	Severity       constants.Severity     `json:"severity"`
	Source         string                 `json:"source"`
	Description    string                 `json:"description"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Resolved       bool                   `json:"resolved"`
	UserID         string                 `json:"user_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
}

// RequestContext carries the request-derived attributes attached to an event.
type RequestContext struct {
	UserID         string
	OrganizationID string
	IPAddress      string
	UserAgent      string
}

// NewSecurityEvent constructs an event with a generated identifier. The
// timestamp is passed in so callers with an injected clock stay testable.
// The metadata map is copied: later mutation by the caller cannot reach the
// stored event.
func NewSecurityEvent(
	ts time.Time,
	eventType constants.EventType,
	severity constants.Severity,
	source string,
	description string,
	metadata map[string]interface{},
	reqCtx *RequestContext,
) *SecurityEvent {
	e := &SecurityEvent{
		ID:          utils.EventID(ts),
		Type:        eventType,
		Severity:    severity,
		Source:      source,
		Description: description,
		Metadata:    maps.Clone(metadata),
		Timestamp:   ts,
	}
	if reqCtx != nil {
		e.UserID = reqCtx.UserID
		e.OrganizationID = reqCtx.OrganizationID
		e.IPAddress = reqCtx.IPAddress
		e.UserAgent = reqCtx.UserAgent
	}
	return e
}

// EventFilter selects a subset of stored events. Zero values mean "any".
type EventFilter struct {
	Type           constants.EventType
	Severity       constants.Severity
	Resolved       *bool
	Start          time.Time
	End            time.Time
	UserID         string
	OrganizationID string

	// Limit caps the result count after descending-timestamp ordering;
	// zero means unlimited.
	Limit int
}

// Matches reports whether the event passes every set filter field.
func (f EventFilter) Matches(e *SecurityEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Resolved != nil && e.Resolved != *f.Resolved {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	return true
}
