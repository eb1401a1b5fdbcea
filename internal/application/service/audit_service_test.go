package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/infrastructure/eventstore"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

type captureSink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
	ch     chan models.SecurityEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan models.SecurityEvent, 16)}
}

func (s *captureSink) Dispatch(_ context.Context, event models.SecurityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.ch <- event
	return nil
}

func newAuditFixture(t *testing.T) (*SecurityAuditService, *captureSink, *clock.Mock) {
	t.Helper()
	cfg := config.Default()
	cfg.Audit.SigningSecret = "0123456789abcdef0123456789abcdef"

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	sink := newCaptureSink()
	store := eventstore.NewMemoryStore(cfg.Audit.MaxStoredEvents, logger.NewNopLogger())
	metrics := monitoring.NewMetricsFor(prometheus.NewRegistry())
	svc := NewSecurityAuditService(cfg, store, sink, metrics, clk, logger.NewNopLogger())
	return svc, sink, clk
}

func TestLogEventAppendsAndReturnsRecord(t *testing.T) {
	svc, _, clk := newAuditFixture(t)

	event := svc.LogEvent(context.Background(),
		constants.EventUnauthorizedAccess, constants.SeverityMedium,
		"api", "token replay detected", map[string]interface{}{"path": "/v1/x"},
		&models.RequestContext{UserID: "u1", IPAddress: "10.0.0.1"})

	require.NotNil(t, event)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, clk.Now(), event.Timestamp)
	assert.Equal(t, "u1", event.UserID)

	got := svc.Events(context.Background(), models.EventFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, event.ID, got[0].ID)
}

func TestLogEventAlertsOnHighSeverity(t *testing.T) {
	svc, sink, _ := newAuditFixture(t)

	svc.LogEvent(context.Background(),
		constants.EventBruteForceAttempt, constants.SeverityHigh,
		"auth", "login storm", nil, nil)

	select {
	case alerted := <-sink.ch:
		assert.Equal(t, constants.EventBruteForceAttempt, alerted.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an alert for a high severity event")
	}
}

func TestLogEventDoesNotAlertOnLowSeverity(t *testing.T) {
	svc, sink, _ := newAuditFixture(t)

	svc.LogEvent(context.Background(),
		constants.EventSuspiciousActivity, constants.SeverityLow,
		"api", "odd user agent", nil, nil)

	select {
	case <-sink.ch:
		t.Fatal("low severity events must not alert")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResolve(t *testing.T) {
	svc, _, _ := newAuditFixture(t)

	event := svc.LogEvent(context.Background(),
		constants.EventSuspiciousActivity, constants.SeverityLow, "api", "x", nil, nil)

	assert.True(t, svc.Resolve(context.Background(), event.ID))
	assert.False(t, svc.Resolve(context.Background(), "evt_missing"))

	got := svc.Events(context.Background(), models.EventFilter{})
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
}

func TestRetentionSweepRemovesOldEvents(t *testing.T) {
	svc, _, clk := newAuditFixture(t)
	svc.Start()
	defer svc.Stop()

	svc.LogEvent(context.Background(),
		constants.EventSuspiciousActivity, constants.SeverityLow, "api", "old", nil, nil)

	// Advance past the retention window; the hourly sweep prunes the event.
	clk.Add(constants.DefaultEventRetention + 2*time.Hour)

	assert.Eventually(t, func() bool {
		return len(svc.Events(context.Background(), models.EventFilter{})) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPatternAnalysisRaisesAnomaly(t *testing.T) {
	svc, sink, clk := newAuditFixture(t)

	// Enough high brute-force events from one IP to push risk past 80.
	for i := 0; i < 3; i++ {
		svc.LogEvent(context.Background(),
			constants.EventBruteForceAttempt, constants.SeverityHigh,
			"auth", "failed login", nil,
			&models.RequestContext{IPAddress: "203.0.113.7"})
	}
	for i := 0; i < 3; i++ {
		<-sink.ch // drain the per-event alerts
	}

	svc.Start()
	defer svc.Stop()
	clk.Add(time.Hour)

	select {
	case alerted := <-sink.ch:
		assert.Equal(t, constants.EventAnomalyDetected, alerted.Type)
		assert.Equal(t, constants.SeverityHigh, alerted.Severity)
		assert.Equal(t, "203.0.113.7", alerted.Metadata["identifier"])
	case <-time.After(time.Second):
		t.Fatal("expected an anomaly event from pattern analysis")
	}

	anomalies := svc.Events(context.Background(), models.EventFilter{Type: constants.EventAnomalyDetected})
	require.NotEmpty(t, anomalies)
}

func TestGenerateReport(t *testing.T) {
	svc, _, clk := newAuditFixture(t)
	ctx := context.Background()
	start := clk.Now()

	// First half: a few rate limit events. Second half: many more, plus
	// brute force volume that crosses the recommendation thresholds.
	for i := 0; i < 30; i++ {
		svc.LogEvent(ctx, constants.EventRateLimitExceeded, constants.SeverityLow, "gw", "quota", nil, nil)
	}
	clk.Add(12 * time.Hour)
	for i := 0; i < 80; i++ {
		svc.LogEvent(ctx, constants.EventRateLimitExceeded, constants.SeverityLow, "gw", "quota", nil, nil)
	}
	for i := 0; i < 51; i++ {
		svc.LogEvent(ctx, constants.EventBruteForceAttempt, constants.SeverityHigh, "auth", "failed login", nil, nil)
	}
	clk.Add(12 * time.Hour)
	end := clk.Now()

	report := svc.GenerateReport(ctx, start, end)
	require.NotNil(t, report)

	assert.Equal(t, 161, report.TotalEvents)
	assert.Equal(t, 110, report.EventsBySeverity[constants.SeverityLow])
	assert.Equal(t, 51, report.EventsBySeverity[constants.SeverityHigh])

	require.NotEmpty(t, report.TopThreats)
	assert.Equal(t, constants.EventRateLimitExceeded, report.TopThreats[0].Type)
	assert.Equal(t, 110, report.TopThreats[0].Count)
	assert.Equal(t, models.TrendIncreasing, report.TopThreats[0].Trend)

	// >100 rate limit events and >50 brute force events both trigger
	// recommendations.
	require.Len(t, report.Recommendations, 2)
}

func TestGenerateReportFlagsMissingSigningSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.SigningSecret = ""

	clk := clock.NewMock()
	store := eventstore.NewMemoryStore(100, logger.NewNopLogger())
	metrics := monitoring.NewMetricsFor(prometheus.NewRegistry())
	svc := NewSecurityAuditService(cfg, store, newCaptureSink(), metrics, clk, logger.NewNopLogger())

	report := svc.GenerateReport(context.Background(), clk.Now().Add(-time.Hour), clk.Now())
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, "vuln-signing-secret", report.Vulnerabilities[0].ID)
	assert.Equal(t, constants.SeverityHigh, report.Vulnerabilities[0].Severity)
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, models.TrendIncreasing, classifyTrend(10, 13))
	assert.Equal(t, models.TrendDecreasing, classifyTrend(10, 7))
	assert.Equal(t, models.TrendStable, classifyTrend(10, 11))
	assert.Equal(t, models.TrendStable, classifyTrend(10, 12))
	assert.Equal(t, models.TrendIncreasing, classifyTrend(0, 1))
	assert.Equal(t, models.TrendStable, classifyTrend(0, 0))
}

func TestLogEventMetadataOwnership(t *testing.T) {
	svc, _, _ := newAuditFixture(t)
	ctx := context.Background()

	metadata := map[string]interface{}{"attempts": 3}
	event := svc.LogEvent(ctx,
		constants.EventBruteForceAttempt, constants.SeverityLow,
		"auth", "repeated failures", metadata, nil)

	// Neither the caller's map nor the returned record reach stored state.
	metadata["attempts"] = 99
	event.Metadata["attempts"] = 99

	stored := svc.Events(ctx, models.EventFilter{})
	require.Len(t, stored, 1)
	assert.Equal(t, 3, stored[0].Metadata["attempts"])
}
