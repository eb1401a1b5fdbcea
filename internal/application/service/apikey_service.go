package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/internal/infrastructure/scheduler"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
	"github.com/perimetra/sentinel/pkg/utils"
)

// APIKeyManager issues, validates and rate-limits API keys. All state is
// in-memory and per-process: usage counts reset on restart. Key definitions
// optionally survive restarts through a snapshot store; usage history does
// not.
type APIKeyManager struct {
	mu    sync.RWMutex
	keys  map[string]*models.APIKey
	byID  map[string]string // key hash -> key id
	usage map[string][]models.APIKeyUsage

	snapshots service.KeySnapshotStore // nil when persistence is disabled
	metrics   *monitoring.Metrics
	clock     clock.Clock
	logger    logger.Logger
	retention time.Duration
	defaults  models.RateLimit
	sched     *scheduler.Scheduler
}

// NewAPIKeyManager constructs the manager. Call Start to begin the usage
// retention sweep, Stop on shutdown.
func NewAPIKeyManager(
	cfg *config.Config,
	snapshots service.KeySnapshotStore,
	metrics *monitoring.Metrics,
	clk clock.Clock,
	log logger.Logger,
) *APIKeyManager {
	m := &APIKeyManager{
		keys:      make(map[string]*models.APIKey),
		byID:      make(map[string]string),
		usage:     make(map[string][]models.APIKeyUsage),
		snapshots: snapshots,
		metrics:   metrics,
		clock:     clk,
		logger:    log.WithComponent("apikey_manager"),
		retention: cfg.Audit.Retention,
		defaults: models.RateLimit{
			Requests: cfg.RateLimit.DefaultRequests,
			Window:   cfg.RateLimit.DefaultWindow,
		},
		sched: scheduler.New(clk, log),
	}
	m.sched.Every("usage-retention-sweep", cfg.Audit.SweepInterval, func(ctx context.Context) {
		m.PruneUsage(ctx, m.clock.Now().Add(-m.retention))
	})
	return m
}

// Load restores snapshotted keys. Call once before Start.
func (m *APIKeyManager) Load(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	keys, err := m.snapshots.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.keys[key.ID] = key
		m.byID[key.KeyHash] = key.ID
	}
	m.logger.Info(ctx, "api keys restored from snapshot", logger.Int("count", len(keys)))
	return nil
}

// Start launches the usage retention sweep.
func (m *APIKeyManager) Start() { m.sched.Start() }

// Stop cancels background tasks.
func (m *APIKeyManager) Stop() { m.sched.Stop() }

// CreateKey issues a new key. The returned secret is shown exactly once;
// only its hash is retained.
func (m *APIKeyManager) CreateKey(
	ctx context.Context,
	name string,
	organizationID string,
	permissions []constants.Permission,
	expiresAt *time.Time,
	rateLimit *models.RateLimit,
) (*models.APIKey, string, error) {
	if name == "" {
		return nil, "", errors.ErrInvalidRequest("name is required")
	}
	if len(permissions) == 0 {
		return nil, "", errors.ErrInvalidRequest("at least one permission is required")
	}

	now := m.clock.Now()
	secret := utils.NewSecret()

	key := &models.APIKey{
		ID:             utils.KeyID(constants.APIKeyIDPrefix, now),
		Name:           name,
		OrganizationID: organizationID,
		KeyHash:        utils.HashSecret(secret),
		Permissions:    permissions,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		RateLimit:      m.defaults,
	}
	if rateLimit != nil && rateLimit.Requests > 0 && rateLimit.Window > 0 {
		key.RateLimit = *rateLimit
	}

	m.mu.Lock()
	m.keys[key.ID] = key
	m.byID[key.KeyHash] = key.ID
	m.mu.Unlock()

	m.persist(ctx, key)
	m.logger.Info(ctx, "api key created",
		logger.String("key_id", key.ID),
		logger.String("organization_id", organizationID))

	return m.copyKey(key.ID), secret, nil
}

// Validate checks a presented secret against the key set. The result is a
// value, not an error: every rejection reason is an expected outcome.
func (m *APIKeyManager) Validate(ctx context.Context, secret string, required constants.Permission) models.ValidationResult {
	hash := utils.HashSecret(secret)

	// Snapshot the key while the read lock is held: SetActive and
	// RecordUsage write shared fields under the write lock.
	m.mu.RLock()
	var key models.APIKey
	found := false
	if id, ok := m.byID[hash]; ok {
		if stored, ok := m.keys[id]; ok {
			key = *stored
			found = true
		}
	}
	m.mu.RUnlock()

	if !found {
		m.metrics.KeyValidations.WithLabelValues("invalid").Inc()
		return models.ValidationResult{Reason: models.ReasonInvalidKey}
	}
	if !key.IsActive {
		m.metrics.KeyValidations.WithLabelValues("inactive").Inc()
		return models.ValidationResult{Reason: models.ReasonInactiveKey}
	}
	if key.Expired(m.clock.Now()) {
		m.metrics.KeyValidations.WithLabelValues("expired").Inc()
		return models.ValidationResult{Reason: models.ReasonExpiredKey}
	}
	if required != "" && !key.HasPermission(required) {
		m.metrics.KeyValidations.WithLabelValues("forbidden").Inc()
		return models.ValidationResult{Reason: models.ReasonInsufficientPermission}
	}

	status := m.CheckRateLimit(ctx, key.ID)
	if !status.Allowed {
		m.metrics.KeyValidations.WithLabelValues("rate_limited").Inc()
		m.metrics.RateLimitRejections.WithLabelValues(key.OrganizationID).Inc()
		return models.ValidationResult{
			Reason:      models.ReasonRateLimited,
			RateLimited: true,
			RetryAfter:  status.ResetAt.Sub(m.clock.Now()),
		}
	}

	m.metrics.KeyValidations.WithLabelValues("valid").Inc()
	return models.ValidationResult{Valid: true, Key: m.copyKey(key.ID)}
}

// CheckRateLimit recounts the key's usage records inside the look-back
// window. Every check rescans that key's usage log; the retention sweep
// keeps the log bounded.
func (m *APIKeyManager) CheckRateLimit(_ context.Context, keyID string) models.RateLimitStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[keyID]
	if !ok {
		return models.RateLimitStatus{}
	}

	now := m.clock.Now()
	windowStart := now.Add(-key.RateLimit.Window)

	count := 0
	var oldest time.Time
	for _, u := range m.usage[keyID] {
		if u.Timestamp.After(windowStart) {
			count++
			if oldest.IsZero() || u.Timestamp.Before(oldest) {
				oldest = u.Timestamp
			}
		}
	}

	remaining := key.RateLimit.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	allowed := count < key.RateLimit.Requests

	// When the quota is exhausted, the window reopens once the oldest
	// in-window record ages out; otherwise it resets at the end of the
	// current look-back window.
	resetAt := windowStart.Add(key.RateLimit.Window)
	if !allowed && !oldest.IsZero() {
		resetAt = oldest.Add(key.RateLimit.Window)
	}

	return models.RateLimitStatus{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// RecordUsage appends one authenticated call to the key's usage log and
// bumps its counters. Unknown ids are ignored.
func (m *APIKeyManager) RecordUsage(ctx context.Context, keyID string, usage models.APIKeyUsage) {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = m.clock.Now()
	}

	m.mu.Lock()
	key, ok := m.keys[keyID]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.usage[keyID] = append(m.usage[keyID], usage)
	key.UsageCount++
	key.LastUsedAt = usage.Timestamp
	m.mu.Unlock()

	m.persist(ctx, key)
}

// GetKey returns a copy of the key, or nil.
func (m *APIKeyManager) GetKey(_ context.Context, id string) *models.APIKey {
	return m.copyKey(id)
}

// ListKeys returns all keys, optionally restricted to one organization,
// newest first.
func (m *APIKeyManager) ListKeys(_ context.Context, organizationID string) []models.APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]models.APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		if organizationID != "" && key.OrganizationID != organizationID {
			continue
		}
		keys = append(keys, *key)
	}
	sortKeysByCreation(keys)
	return keys
}

// SetActive toggles a key without discarding its usage history.
func (m *APIKeyManager) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	key, ok := m.keys[id]
	if ok {
		key.IsActive = active
	}
	m.mu.Unlock()

	if !ok {
		return errors.ErrNotFound("api key not found")
	}
	m.persist(ctx, key)
	m.logger.Info(ctx, "api key state changed",
		logger.String("key_id", id), logger.Bool("active", active))
	return nil
}

// DeleteKey removes the key and its usage history.
func (m *APIKeyManager) DeleteKey(ctx context.Context, id string) error {
	m.mu.Lock()
	key, ok := m.keys[id]
	if ok {
		delete(m.byID, key.KeyHash)
		delete(m.keys, id)
		delete(m.usage, id)
	}
	m.mu.Unlock()

	if !ok {
		return errors.ErrNotFound("api key not found")
	}

	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, id); err != nil {
			m.logger.Error(ctx, "failed to delete api key snapshot", err, logger.String("key_id", id))
		}
	}
	m.logger.Info(ctx, "api key deleted", logger.String("key_id", id))
	return nil
}

// PruneUsage drops usage records older than the cutoff across all keys and
// returns the count removed.
func (m *APIKeyManager) PruneUsage(ctx context.Context, olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, records := range m.usage {
		kept := records[:0]
		for _, u := range records {
			if u.Timestamp.After(olderThan) {
				kept = append(kept, u)
			}
		}
		removed += len(records) - len(kept)
		if len(kept) == 0 {
			delete(m.usage, id)
			continue
		}
		m.usage[id] = kept
	}

	if removed > 0 {
		m.logger.Info(ctx, "usage records pruned", logger.Int("removed", removed))
	}
	return removed
}

// UsageHistory returns a copy of the key's usage records.
func (m *APIKeyManager) UsageHistory(_ context.Context, keyID string) []models.APIKeyUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.usage[keyID]
	out := make([]models.APIKeyUsage, len(records))
	copy(out, records)
	return out
}

func (m *APIKeyManager) copyKey(id string) *models.APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[id]
	if !ok {
		return nil
	}
	cp := *key
	cp.Permissions = append([]constants.Permission(nil), key.Permissions...)
	return &cp
}

func (m *APIKeyManager) persist(ctx context.Context, key *models.APIKey) {
	if m.snapshots == nil {
		return
	}
	m.mu.RLock()
	cp := *key
	m.mu.RUnlock()

	if err := m.snapshots.Save(ctx, &cp); err != nil {
		m.logger.Error(ctx, "failed to save api key snapshot", err, logger.String("key_id", key.ID))
	}
}

func sortKeysByCreation(keys []models.APIKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
}
