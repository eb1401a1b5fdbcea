package service

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
	"github.com/perimetra/sentinel/pkg/utils"
)

// MFAService issues short-lived verification challenges per device and
// verifies submitted codes. A successful verification returns a fresh set
// of single-use backup codes.
type MFAService struct {
	challenges *gocache.Cache
	recorder   service.EventRecorder
	logger     logger.Logger
	codeDigits int

	// backupCodes holds device id -> set of code hashes. Entries expire so
	// abandoned devices do not accumulate; mu makes consume-one atomic.
	mu          sync.Mutex
	backupCodes *gocache.Cache
}

// backupCodeTTL bounds how long an issued backup-code set stays usable.
const backupCodeTTL = 90 * 24 * time.Hour

type mfaChallenge struct {
	CodeHash string
	Type     string
}

// NewMFAService constructs the service. Challenges expire after the
// configured TTL and are purged by the cache's own janitor.
func NewMFAService(cfg config.MFAConfig, recorder service.EventRecorder, log logger.Logger) *MFAService {
	digits := cfg.CodeDigits
	if digits <= 0 {
		digits = 6
	}
	return &MFAService{
		challenges:  gocache.New(cfg.ChallengeTTL, 2*cfg.ChallengeTTL),
		recorder:    recorder,
		logger:      log.WithComponent("mfa"),
		codeDigits:  digits,
		backupCodes: gocache.New(backupCodeTTL, 24*time.Hour),
	}
}

// IssueChallenge creates a new verification code for the device, replacing
// any pending one. The code is returned to the caller for out-of-band
// delivery; only its hash is kept.
func (s *MFAService) IssueChallenge(ctx context.Context, deviceID, challengeType string) (string, error) {
	if deviceID == "" {
		return "", errors.ErrInvalidRequest("deviceId is required")
	}

	code := utils.NumericCode(s.codeDigits)
	s.challenges.SetDefault(deviceID, mfaChallenge{
		CodeHash: utils.HashSecret(code),
		Type:     challengeType,
	})
	s.logger.Info(ctx, "mfa challenge issued",
		logger.String("device_id", deviceID),
		logger.String("type", challengeType))
	return code, nil
}

// Verify checks the submitted code against the device's pending challenge.
// On success the challenge is consumed and new backup codes are issued.
// Unknown devices map to 404, wrong codes to 401.
func (s *MFAService) Verify(ctx context.Context, deviceID, code, challengeType string) ([]string, error) {
	if deviceID == "" || code == "" {
		return nil, errors.ErrInvalidRequest("deviceId and code are required")
	}

	raw, found := s.challenges.Get(deviceID)
	if !found {
		return nil, errors.ErrNotFound("no pending verification for device")
	}
	challenge := raw.(mfaChallenge)

	if challengeType != "" && challenge.Type != challengeType {
		return nil, errors.ErrInvalidRequest("verification type mismatch")
	}

	if !utils.SecureCompare(utils.HashSecret(code), challenge.CodeHash) {
		s.recorder.LogEvent(ctx,
			constants.EventMFAFailure,
			constants.SeverityMedium,
			"mfa",
			"MFA verification failed for device "+deviceID,
			map[string]interface{}{"device_id": deviceID, "type": challenge.Type},
			nil,
		)
		return nil, errors.ErrUnauthorized("invalid verification code")
	}

	s.challenges.Delete(deviceID)
	codes := s.issueBackupCodes(deviceID)

	s.logger.Info(ctx, "mfa verification succeeded", logger.String("device_id", deviceID))
	return codes, nil
}

// VerifyBackupCode consumes one of the device's single-use backup codes.
func (s *MFAService) VerifyBackupCode(ctx context.Context, deviceID, code string) error {
	hash := utils.HashSecret(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.backupCodes.Get(deviceID)
	if !ok {
		return errors.ErrNotFound("no backup codes for device")
	}
	set := raw.(map[string]struct{})
	if _, ok := set[hash]; !ok {
		s.recorder.LogEvent(ctx,
			constants.EventMFAFailure,
			constants.SeverityMedium,
			"mfa",
			"Backup code verification failed for device "+deviceID,
			map[string]interface{}{"device_id": deviceID},
			nil,
		)
		return errors.ErrUnauthorized("invalid backup code")
	}

	delete(set, hash)
	return nil
}

func (s *MFAService) issueBackupCodes(deviceID string) []string {
	codes := make([]string, 0, constants.MFABackupCodeCount)
	hashes := make(map[string]struct{}, constants.MFABackupCodeCount)
	for i := 0; i < constants.MFABackupCodeCount; i++ {
		code := utils.RandomHex(4)
		codes = append(codes, code)
		hashes[utils.HashSecret(code)] = struct{}{}
	}

	s.mu.Lock()
	s.backupCodes.Set(deviceID, hashes, backupCodeTTL)
	s.mu.Unlock()
	return codes
}
