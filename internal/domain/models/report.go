package models

import (
	"time"

	"github.com/perimetra/sentinel/pkg/constants"
)

// Trend classifies how a threat's event volume moved across the report period.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ThreatSummary aggregates one event type over a report period.
type ThreatSummary struct {
	Type  constants.EventType `json:"type"`
	Count int                 `json:"count"`
	Trend Trend               `json:"trend"`
}

// VulnerabilityFinding is a configuration weakness detected by the report's
// environment checks.
type VulnerabilityFinding struct {
	ID             string             `json:"id"`
	Severity       constants.Severity `json:"severity"`
	Description    string             `json:"description"`
	Recommendation string             `json:"recommendation"`
}

// AuditReport is the periodic aggregation over the event store.
type AuditReport struct {
	ID               string                     `json:"id"`
	GeneratedAt      time.Time                  `json:"generated_at"`
	PeriodStart      time.Time                  `json:"period_start"`
	PeriodEnd        time.Time                  `json:"period_end"`
	TotalEvents      int                        `json:"total_events"`
	EventsBySeverity map[constants.Severity]int `json:"events_by_severity"`
	TopThreats       []ThreatSummary            `json:"top_threats"`
	Recommendations  []string                   `json:"recommendations"`
	Vulnerabilities  []VulnerabilityFinding     `json:"vulnerabilities"`
}

// DiagnosticResult is the outcome of one named built-in diagnostic.
type DiagnosticResult struct {
	Success         bool                   `json:"success"`
	Message         string                 `json:"message"`
	Details         map[string]interface{} `json:"details,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
}
