package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/infrastructure/eventstore"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

func newDiagnostics(cfg *config.Config) *DiagnosticsService {
	store := eventstore.NewMemoryStore(cfg.Audit.MaxStoredEvents, logger.NewNopLogger())
	return NewDiagnosticsService(cfg, nil, store, newCaptureSink(), logger.NewNopLogger())
}

func TestDiagnosticsUnknownTest(t *testing.T) {
	svc := newDiagnostics(config.Default())

	_, err := svc.Run(context.Background(), "no-such-test")
	assert.True(t, errors.IsNotFound(err))
}

func TestDiagnosticsCatalog(t *testing.T) {
	svc := newDiagnostics(config.Default())

	names := svc.Catalog()
	assert.Contains(t, names, "tls-config")
	assert.Contains(t, names, "signing-secret")
	assert.Contains(t, names, "cache-backend")
	assert.Contains(t, names, "event-store")
	assert.Contains(t, names, "alert-sink")
}

func TestDiagnosticsSigningSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.SigningSecret = ""
	svc := newDiagnostics(cfg)

	result, err := svc.Run(context.Background(), "signing-secret")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Recommendations)

	cfg.Audit.SigningSecret = "short"
	result, err = svc.Run(context.Background(), "signing-secret")
	require.NoError(t, err)
	assert.False(t, result.Success)

	cfg.Audit.SigningSecret = "0123456789abcdef0123456789abcdef"
	result, err = svc.Run(context.Background(), "signing-secret")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDiagnosticsTLSConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Environment = "production"
	cfg.Server.PublicBaseURL = "http://sentinel.example.com"
	svc := newDiagnostics(cfg)

	result, err := svc.Run(context.Background(), "tls-config")
	require.NoError(t, err)
	assert.False(t, result.Success)

	cfg.Server.PublicBaseURL = "https://sentinel.example.com"
	result, err = svc.Run(context.Background(), "tls-config")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDiagnosticsCacheBackendWithoutRemote(t *testing.T) {
	svc := newDiagnostics(config.Default())

	result, err := svc.Run(context.Background(), "cache-backend")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDiagnosticsAlertSink(t *testing.T) {
	svc := newDiagnostics(config.Default())

	result, err := svc.Run(context.Background(), "alert-sink")
	require.NoError(t, err)
	assert.True(t, result.Success)
}
