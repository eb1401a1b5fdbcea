// Package service implements the application-level use cases: event
// auditing, API key management, MFA verification, encryption key lifecycle
// and diagnostics.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/internal/infrastructure/scheduler"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
	"github.com/perimetra/sentinel/pkg/utils"
)

const topThreatCount = 10

// SecurityAuditService owns the event store, its background maintenance and
// report generation. Construct it once at startup and Stop it on shutdown;
// there is no global instance.
type SecurityAuditService struct {
	store     service.EventStore
	alerts    service.AlertSink
	metrics   *monitoring.Metrics
	clock     clock.Clock
	logger    logger.Logger
	auditCfg  config.AuditConfig
	serverCfg config.ServerConfig
	sched     *scheduler.Scheduler
}

var _ service.EventRecorder = (*SecurityAuditService)(nil)

// NewSecurityAuditService wires the audit service and registers its
// background tasks. Call Start to begin the hourly sweep and analysis.
func NewSecurityAuditService(
	cfg *config.Config,
	store service.EventStore,
	alerts service.AlertSink,
	metrics *monitoring.Metrics,
	clk clock.Clock,
	log logger.Logger,
) *SecurityAuditService {
	s := &SecurityAuditService{
		store:     store,
		alerts:    alerts,
		metrics:   metrics,
		clock:     clk,
		logger:    log.WithComponent("security_audit"),
		auditCfg:  cfg.Audit,
		serverCfg: cfg.Server,
		sched:     scheduler.New(clk, log),
	}

	s.sched.Every("retention-sweep", cfg.Audit.SweepInterval, s.sweep)
	s.sched.Every("pattern-analysis", cfg.Audit.SweepInterval, s.analyzePatterns)
	return s
}

// Start launches the background sweep and analysis tasks.
func (s *SecurityAuditService) Start() {
	s.sched.Start()
	s.logger.Info(context.Background(), "audit background tasks started",
		logger.Duration("interval", s.auditCfg.SweepInterval))
}

// Stop cancels the background tasks and waits for in-flight runs.
func (s *SecurityAuditService) Stop() {
	s.sched.Stop()
}

// LogEvent records a security event. It always succeeds: the append is
// in-memory and alerting for high and critical events is dispatched on a
// separate goroutine, never blocking or failing the caller.
func (s *SecurityAuditService) LogEvent(
	ctx context.Context,
	eventType constants.EventType,
	severity constants.Severity,
	source string,
	description string,
	metadata map[string]interface{},
	reqCtx *models.RequestContext,
) *models.SecurityEvent {
	event := models.NewSecurityEvent(s.clock.Now(), eventType, severity, source, description, metadata, reqCtx)
	s.store.Append(ctx, event)

	s.metrics.EventsLogged.WithLabelValues(string(eventType), string(severity)).Inc()
	s.logger.Info(ctx, "security event logged",
		logger.String("event_id", event.ID),
		logger.String("type", string(eventType)),
		logger.String("severity", string(severity)),
		logger.String("source", source))

	if severity == constants.SeverityHigh || severity == constants.SeverityCritical {
		go s.dispatchAlert(*event)
	}
	return event
}

func (s *SecurityAuditService) dispatchAlert(event models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.alerts.Dispatch(ctx, event); err != nil {
		s.metrics.AlertsDispatched.WithLabelValues("primary", "error").Inc()
		s.logger.Error(ctx, "alert dispatch failed", err, logger.String("event_id", event.ID))
		return
	}
	s.metrics.AlertsDispatched.WithLabelValues("primary", "ok").Inc()
}

// Events returns stored events matching the filter, newest first.
func (s *SecurityAuditService) Events(ctx context.Context, filter models.EventFilter) []models.SecurityEvent {
	return s.store.Events(ctx, filter)
}

// Resolve marks an event resolved. Returns false for unknown ids.
func (s *SecurityAuditService) Resolve(ctx context.Context, id string) bool {
	ok := s.store.Resolve(ctx, id)
	if ok {
		s.logger.Info(ctx, "security event resolved", logger.String("event_id", id))
	}
	return ok
}

// GenerateReport aggregates events in [start, end] into an audit report.
func (s *SecurityAuditService) GenerateReport(ctx context.Context, start, end time.Time) *models.AuditReport {
	timer := s.clock.Now()
	events := s.store.Events(ctx, models.EventFilter{Start: start, End: end})

	report := &models.AuditReport{
		ID:               utils.KeyID("report", s.clock.Now()),
		GeneratedAt:      s.clock.Now(),
		PeriodStart:      start,
		PeriodEnd:        end,
		TotalEvents:      len(events),
		EventsBySeverity: make(map[constants.Severity]int),
		TopThreats:       s.topThreats(events, start, end),
	}
	for i := range events {
		report.EventsBySeverity[events[i].Severity]++
	}
	report.Recommendations = s.recommendations(events)
	report.Vulnerabilities = s.environmentFindings()

	s.metrics.AuditReportDurations.Observe(s.clock.Since(timer).Seconds())
	s.logger.Info(ctx, "audit report generated",
		logger.String("report_id", report.ID),
		logger.Int("total_events", report.TotalEvents))
	return report
}

// topThreats counts events by type and classifies each type's trend by
// comparing the first and second half of the period.
func (s *SecurityAuditService) topThreats(events []models.SecurityEvent, start, end time.Time) []models.ThreatSummary {
	total := make(map[constants.EventType]int)
	firstHalf := make(map[constants.EventType]int)
	secondHalf := make(map[constants.EventType]int)
	midpoint := start.Add(end.Sub(start) / 2)

	for i := range events {
		t := events[i].Type
		total[t]++
		if events[i].Timestamp.Before(midpoint) {
			firstHalf[t]++
		} else {
			secondHalf[t]++
		}
	}

	threats := make([]models.ThreatSummary, 0, len(total))
	for t, count := range total {
		threats = append(threats, models.ThreatSummary{
			Type:  t,
			Count: count,
			Trend: classifyTrend(firstHalf[t], secondHalf[t]),
		})
	}
	sort.Slice(threats, func(i, j int) bool {
		if threats[i].Count != threats[j].Count {
			return threats[i].Count > threats[j].Count
		}
		return threats[i].Type < threats[j].Type
	})
	if len(threats) > topThreatCount {
		threats = threats[:topThreatCount]
	}
	return threats
}

// classifyTrend compares the halves of the period: a move of more than 20%
// in either direction counts as a trend.
func classifyTrend(first, second int) models.Trend {
	if first == 0 {
		if second > 0 {
			return models.TrendIncreasing
		}
		return models.TrendStable
	}
	change := float64(second-first) / float64(first)
	switch {
	case change > 0.2:
		return models.TrendIncreasing
	case change < -0.2:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func (s *SecurityAuditService) recommendations(events []models.SecurityEvent) []string {
	byType := make(map[constants.EventType]int)
	unresolvedCritical := 0
	for i := range events {
		byType[events[i].Type]++
		if events[i].Severity == constants.SeverityCritical && !events[i].Resolved {
			unresolvedCritical++
		}
	}

	var recs []string
	if byType[constants.EventRateLimitExceeded] > 100 {
		recs = append(recs, "High volume of rate limit violations detected. Consider tightening rate limits or blocking repeat offenders.")
	}
	if byType[constants.EventBruteForceAttempt] > 50 {
		recs = append(recs, "Multiple brute force attempts detected. Enable account lockout policies and review authentication logs.")
	}
	if unresolvedCritical > 0 {
		recs = append(recs, fmt.Sprintf("%d critical events remain unresolved. Triage and resolve them.", unresolvedCritical))
	}
	return recs
}

// environmentFindings checks deployment preconditions that weaken the
// security posture regardless of traffic.
func (s *SecurityAuditService) environmentFindings() []models.VulnerabilityFinding {
	var findings []models.VulnerabilityFinding
	if s.auditCfg.SigningSecret == "" {
		findings = append(findings, models.VulnerabilityFinding{
			ID:             "vuln-signing-secret",
			Severity:       constants.SeverityHigh,
			Description:    "No signing secret is configured; issued artifacts cannot be verified.",
			Recommendation: "Set audit.signing_secret to a high-entropy value.",
		})
	}
	if s.serverCfg.IsProduction() && !strings.HasPrefix(s.serverCfg.PublicBaseURL, "https://") {
		findings = append(findings, models.VulnerabilityFinding{
			ID:             "vuln-plaintext-base-url",
			Severity:       constants.SeverityMedium,
			Description:    "Production public base URL does not use HTTPS.",
			Recommendation: "Serve the API behind TLS and update server.public_base_url.",
		})
	}
	return findings
}

// sweep removes events older than the retention window.
func (s *SecurityAuditService) sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.auditCfg.Retention)
	removed := s.store.Prune(ctx, cutoff)
	if removed > 0 {
		s.metrics.EventsEvicted.WithLabelValues("retention").Add(float64(removed))
		s.logger.Info(ctx, "retention sweep completed",
			logger.Int("removed", removed),
			logger.Time("cutoff", cutoff))
	}
}

// analyzePatterns scores recent activity per IP and per user and raises a
// high-severity anomaly event when a group's risk crosses the threshold.
// Previously raised anomaly events are excluded from scoring so the
// analysis does not feed on its own output.
func (s *SecurityAuditService) analyzePatterns(ctx context.Context) {
	windowStart := s.clock.Now().Add(-s.auditCfg.AnomalyWindow)
	events := s.store.Events(ctx, models.EventFilter{Start: windowStart})

	byIP := make(map[string][]models.SecurityEvent)
	byUser := make(map[string][]models.SecurityEvent)
	for i := range events {
		if events[i].Type == constants.EventAnomalyDetected {
			continue
		}
		if ip := events[i].IPAddress; ip != "" {
			byIP[ip] = append(byIP[ip], events[i])
		}
		if uid := events[i].UserID; uid != "" {
			byUser[uid] = append(byUser[uid], events[i])
		}
	}

	s.raiseAnomalies(ctx, "ip", byIP)
	s.raiseAnomalies(ctx, "user", byUser)
}

func (s *SecurityAuditService) raiseAnomalies(ctx context.Context, dimension string, groups map[string][]models.SecurityEvent) {
	for identifier, group := range groups {
		score := service.RiskScore(group)
		if score <= s.auditCfg.RiskAlertThreshold {
			continue
		}
		s.LogEvent(ctx,
			constants.EventAnomalyDetected,
			constants.SeverityHigh,
			"pattern-analysis",
			fmt.Sprintf("Elevated risk score %d for %s %s over the last %s", score, dimension, identifier, s.auditCfg.AnomalyWindow),
			map[string]interface{}{
				"dimension":   dimension,
				"identifier":  identifier,
				"risk_score":  score,
				"event_count": len(group),
			},
			nil,
		)
	}
}
