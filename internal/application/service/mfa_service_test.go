package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (r *captureRecorder) LogEvent(
	_ context.Context,
	eventType constants.EventType,
	severity constants.Severity,
	source string,
	description string,
	metadata map[string]interface{},
	reqCtx *models.RequestContext,
) *models.SecurityEvent {
	event := models.NewSecurityEvent(time.Now(), eventType, severity, source, description, metadata, reqCtx)
	r.mu.Lock()
	r.events = append(r.events, *event)
	r.mu.Unlock()
	return event
}

func (r *captureRecorder) recorded() []models.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SecurityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newMFAService() (*MFAService, *captureRecorder) {
	recorder := &captureRecorder{}
	cfg := config.MFAConfig{ChallengeTTL: 5 * time.Minute, CodeDigits: 6}
	return NewMFAService(cfg, recorder, logger.NewNopLogger()), recorder
}

func TestMFAVerifySuccess(t *testing.T) {
	svc, _ := newMFAService()
	ctx := context.Background()

	code, err := svc.IssueChallenge(ctx, "device-1", "totp")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	codes, err := svc.Verify(ctx, "device-1", code, "totp")
	require.NoError(t, err)
	assert.Len(t, codes, constants.MFABackupCodeCount)

	// The challenge is consumed: replaying the same code fails.
	_, err = svc.Verify(ctx, "device-1", code, "totp")
	assert.True(t, errors.IsNotFound(err))
}

func TestMFAVerifyUnknownDevice(t *testing.T) {
	svc, _ := newMFAService()

	_, err := svc.Verify(context.Background(), "never-seen", "123456", "totp")
	assert.True(t, errors.IsNotFound(err))
}

func TestMFAVerifyWrongCode(t *testing.T) {
	svc, recorder := newMFAService()
	ctx := context.Background()

	code, err := svc.IssueChallenge(ctx, "device-1", "totp")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = svc.Verify(ctx, "device-1", wrong, "totp")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeUnauthorized, appErr.Code())

	events := recorder.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, constants.EventMFAFailure, events[0].Type)
}

func TestMFAVerifyTypeMismatch(t *testing.T) {
	svc, _ := newMFAService()
	ctx := context.Background()

	code, err := svc.IssueChallenge(ctx, "device-1", "totp")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, "device-1", code, "sms")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidRequest, appErr.Code())
}

func TestMFAVerifyMissingFields(t *testing.T) {
	svc, _ := newMFAService()

	_, err := svc.Verify(context.Background(), "", "123456", "totp")
	assert.Error(t, err)
	_, err = svc.Verify(context.Background(), "device-1", "", "totp")
	assert.Error(t, err)
}

func TestMFABackupCodesSingleUse(t *testing.T) {
	svc, _ := newMFAService()
	ctx := context.Background()

	code, err := svc.IssueChallenge(ctx, "device-1", "totp")
	require.NoError(t, err)
	codes, err := svc.Verify(ctx, "device-1", code, "totp")
	require.NoError(t, err)

	require.NoError(t, svc.VerifyBackupCode(ctx, "device-1", codes[0]))

	err = svc.VerifyBackupCode(ctx, "device-1", codes[0])
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeUnauthorized, appErr.Code())

	// The other codes stay valid.
	require.NoError(t, svc.VerifyBackupCode(ctx, "device-1", codes[1]))
}

func TestMFABackupCodesExpire(t *testing.T) {
	svc, _ := newMFAService()
	ctx := context.Background()

	code, err := svc.IssueChallenge(ctx, "device-1", "totp")
	require.NoError(t, err)
	codes, err := svc.Verify(ctx, "device-1", code, "totp")
	require.NoError(t, err)

	// Issued codes carry a deadline so abandoned devices age out of the cache.
	raw, expiresAt, found := svc.backupCodes.GetWithExpiration("device-1")
	require.True(t, found)
	require.NotNil(t, raw)
	assert.False(t, expiresAt.IsZero())

	// Rewrite the entry with an immediate deadline and let it lapse.
	svc.backupCodes.Set("device-1", raw, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	err = svc.VerifyBackupCode(ctx, "device-1", codes[0])
	assert.True(t, errors.IsNotFound(err))
}
