package service

import (
	"context"
	"sort"
	"strings"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/internal/infrastructure/cache"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

// Diagnostic is one named self-check.
type Diagnostic func(ctx context.Context) models.DiagnosticResult

// DiagnosticsService runs named built-in checks against the live
// configuration and wiring. Checks are read-only.
type DiagnosticsService struct {
	checks map[string]Diagnostic
	logger logger.Logger
}

// NewDiagnosticsService registers the built-in checks.
func NewDiagnosticsService(
	cfg *config.Config,
	fallback *cache.FallbackCache,
	store service.EventStore,
	alerts service.AlertSink,
	log logger.Logger,
) *DiagnosticsService {
	s := &DiagnosticsService{
		checks: make(map[string]Diagnostic),
		logger: log.WithComponent("diagnostics"),
	}

	s.checks["tls-config"] = func(_ context.Context) models.DiagnosticResult {
		if !cfg.Server.IsProduction() {
			return models.DiagnosticResult{
				Success: true,
				Message: "TLS check skipped outside production",
				Details: map[string]interface{}{"environment": cfg.Server.Environment},
			}
		}
		if strings.HasPrefix(cfg.Server.PublicBaseURL, "https://") {
			return models.DiagnosticResult{Success: true, Message: "Public base URL uses HTTPS"}
		}
		return models.DiagnosticResult{
			Success: false,
			Message: "Public base URL does not use HTTPS in production",
			Details: map[string]interface{}{"public_base_url": cfg.Server.PublicBaseURL},
			Recommendations: []string{
				"Terminate TLS in front of the service and set server.public_base_url to an https URL.",
			},
		}
	}

	s.checks["signing-secret"] = func(_ context.Context) models.DiagnosticResult {
		if cfg.Audit.SigningSecret == "" {
			return models.DiagnosticResult{
				Success: false,
				Message: "No signing secret configured",
				Recommendations: []string{
					"Set audit.signing_secret to a high-entropy value.",
				},
			}
		}
		if len(cfg.Audit.SigningSecret) < 32 {
			return models.DiagnosticResult{
				Success: false,
				Message: "Signing secret is shorter than 32 characters",
				Details: map[string]interface{}{"length": len(cfg.Audit.SigningSecret)},
				Recommendations: []string{
					"Use at least 32 characters of random data for the signing secret.",
				},
			}
		}
		return models.DiagnosticResult{Success: true, Message: "Signing secret configured"}
	}

	s.checks["cache-backend"] = func(_ context.Context) models.DiagnosticResult {
		if fallback == nil {
			return models.DiagnosticResult{
				Success: true,
				Message: "Running on the in-process cache only",
			}
		}
		if fallback.RemoteActive() {
			return models.DiagnosticResult{Success: true, Message: "Remote cache active"}
		}
		return models.DiagnosticResult{
			Success: false,
			Message: "Remote cache disabled, running on the in-process fallback",
			Recommendations: []string{
				"Check Redis connectivity; the remote tier stays disabled until restart.",
			},
		}
	}

	s.checks["event-store"] = func(_ context.Context) models.DiagnosticResult {
		n := store.Len()
		result := models.DiagnosticResult{
			Success: true,
			Message: "Event store operating normally",
			Details: map[string]interface{}{
				"stored_events": n,
				"capacity":      cfg.Audit.MaxStoredEvents,
			},
		}
		if n >= cfg.Audit.MaxStoredEvents {
			result.Success = false
			result.Message = "Event store at capacity; oldest events are being evicted"
			result.Recommendations = []string{
				"Increase audit.max_stored_events or enable the archive sink.",
			}
		}
		return result
	}

	s.checks["alert-sink"] = func(ctx context.Context) models.DiagnosticResult {
		probe := models.SecurityEvent{
			ID:          "diag_probe",
			Type:        constants.EventSuspiciousActivity,
			Severity:    constants.SeverityLow,
			Source:      "diagnostics",
			Description: "alert sink connectivity probe",
		}
		if err := alerts.Dispatch(ctx, probe); err != nil {
			return models.DiagnosticResult{
				Success: false,
				Message: "Alert sink dispatch failed",
				Details: map[string]interface{}{"error": err.Error()},
				Recommendations: []string{
					"Check broker connectivity and alerting configuration.",
				},
			}
		}
		return models.DiagnosticResult{Success: true, Message: "Alert sink reachable"}
	}

	return s
}

// Run executes the named diagnostic.
func (s *DiagnosticsService) Run(ctx context.Context, testID string) (models.DiagnosticResult, error) {
	check, ok := s.checks[testID]
	if !ok {
		return models.DiagnosticResult{}, errors.ErrNotFound("unknown diagnostic: " + testID)
	}

	result := check(ctx)
	s.logger.Info(ctx, "diagnostic executed",
		logger.String("test_id", testID),
		logger.Bool("success", result.Success))
	return result, nil
}

// Catalog lists the available diagnostic names, sorted.
func (s *DiagnosticsService) Catalog() []string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
