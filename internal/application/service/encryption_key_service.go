package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/errors"
	"github.com/perimetra/sentinel/pkg/logger"
	"github.com/perimetra/sentinel/pkg/utils"
)

const keyListCacheKey = "encryption-keys:list"

// EncryptionKeyService manages data-encryption key lifecycle: create,
// list, rotate, revoke and delete. Material comes from the configured
// provider; metadata listings are cached.
type EncryptionKeyService struct {
	mu   sync.RWMutex
	keys map[string]*models.EncryptionKey

	provider service.KeyProvider
	cache    service.Cache
	recorder service.EventRecorder
	clock    clock.Clock
	logger   logger.Logger
}

func NewEncryptionKeyService(
	provider service.KeyProvider,
	cache service.Cache,
	recorder service.EventRecorder,
	clk clock.Clock,
	log logger.Logger,
) *EncryptionKeyService {
	return &EncryptionKeyService{
		keys:     make(map[string]*models.EncryptionKey),
		provider: provider,
		cache:    cache,
		recorder: recorder,
		clock:    clk,
		logger:   log.WithComponent("encryption_keys"),
	}
}

// CreateKey provisions a new active key under the alias.
func (s *EncryptionKeyService) CreateKey(ctx context.Context, alias string) (*models.EncryptionKey, error) {
	if alias == "" {
		return nil, errors.ErrInvalidRequest("alias is required")
	}

	s.mu.RLock()
	for _, k := range s.keys {
		if k.Alias == alias && k.Status == models.KeyStatusActive {
			s.mu.RUnlock()
			return nil, errors.ErrConflict("an active key already exists for alias " + alias)
		}
	}
	s.mu.RUnlock()

	now := s.clock.Now()
	material, err := s.provider.GenerateDataKey(ctx, alias)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key material")
	}

	key := &models.EncryptionKey{
		ID:        utils.KeyID("ek", now),
		Alias:     alias,
		Version:   1,
		Status:    models.KeyStatusActive,
		Provider:  s.provider.Name(),
		CreatedAt: now,
		Material:  material,
	}

	s.mu.Lock()
	s.keys[key.ID] = key
	s.mu.Unlock()

	s.invalidateListing(ctx)
	s.recordLifecycle(ctx, "created", key)
	return copyEncryptionKey(key), nil
}

// GetKey returns key metadata by id.
func (s *EncryptionKeyService) GetKey(_ context.Context, id string) (*models.EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, errors.ErrNotFound("encryption key not found")
	}
	return copyEncryptionKey(key), nil
}

// ListKeys returns all keys, newest first. The listing is cached briefly;
// mutations invalidate it.
func (s *EncryptionKeyService) ListKeys(ctx context.Context) []models.EncryptionKey {
	if data, ok := s.cache.Get(ctx, keyListCacheKey); ok {
		var cached []models.EncryptionKey
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached
		}
	}

	s.mu.RLock()
	keys := make([]models.EncryptionKey, 0, len(s.keys))
	for _, key := range s.keys {
		cp := *key
		cp.Material = nil
		keys = append(keys, cp)
	}
	s.mu.RUnlock()

	sortEncryptionKeys(keys)
	if data, err := json.Marshal(keys); err == nil {
		s.cache.Set(ctx, keyListCacheKey, data, 30*time.Second)
	}
	return keys
}

// RotateKey replaces the key's material with a new version. The previous
// version is retained with status rotated so existing ciphertext stays
// decryptable.
func (s *EncryptionKeyService) RotateKey(ctx context.Context, id string) (*models.EncryptionKey, error) {
	s.mu.RLock()
	old, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.ErrNotFound("encryption key not found")
	}
	if old.Status != models.KeyStatusActive {
		return nil, errors.ErrConflict("only active keys can be rotated")
	}

	now := s.clock.Now()
	material, err := s.provider.GenerateDataKey(ctx, old.Alias)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key material")
	}

	next := &models.EncryptionKey{
		ID:        utils.KeyID("ek", now),
		Alias:     old.Alias,
		Version:   old.Version + 1,
		Status:    models.KeyStatusActive,
		Provider:  s.provider.Name(),
		CreatedAt: now,
		Material:  material,
	}

	s.mu.Lock()
	old.Status = models.KeyStatusRotated
	old.RotatedAt = &now
	s.keys[next.ID] = next
	s.mu.Unlock()

	s.invalidateListing(ctx)
	s.recordLifecycle(ctx, "rotated", next)
	return copyEncryptionKey(next), nil
}

// RevokeKey marks the key unusable without deleting its record.
func (s *EncryptionKeyService) RevokeKey(ctx context.Context, id string) error {
	s.mu.Lock()
	key, ok := s.keys[id]
	if ok {
		key.Status = models.KeyStatusRevoked
	}
	s.mu.Unlock()

	if !ok {
		return errors.ErrNotFound("encryption key not found")
	}
	s.invalidateListing(ctx)
	s.recordLifecycle(ctx, "revoked", key)
	return nil
}

// DeleteKey removes the key record entirely. Active keys require force:
// deleting one silently would orphan ciphertext.
func (s *EncryptionKeyService) DeleteKey(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	key, ok := s.keys[id]
	if ok && key.Status == models.KeyStatusActive && !force {
		s.mu.Unlock()
		return errors.ErrConflict("key is active; deletion requires force")
	}
	if ok {
		delete(s.keys, id)
	}
	s.mu.Unlock()

	if !ok {
		return errors.ErrNotFound("encryption key not found")
	}
	s.invalidateListing(ctx)
	s.recordLifecycle(ctx, "deleted", key)
	return nil
}

func (s *EncryptionKeyService) invalidateListing(ctx context.Context) {
	s.cache.Delete(ctx, keyListCacheKey)
}

func (s *EncryptionKeyService) recordLifecycle(ctx context.Context, action string, key *models.EncryptionKey) {
	s.recorder.LogEvent(ctx,
		constants.EventKeyLifecycle,
		constants.SeverityLow,
		"encryption-keys",
		"Encryption key "+action+": "+key.Alias,
		map[string]interface{}{
			"key_id":  key.ID,
			"alias":   key.Alias,
			"version": key.Version,
			"action":  action,
		},
		nil,
	)
	s.logger.Info(ctx, "encryption key "+action,
		logger.String("key_id", key.ID),
		logger.String("alias", key.Alias),
		logger.Int("version", key.Version))
}

func copyEncryptionKey(key *models.EncryptionKey) *models.EncryptionKey {
	cp := *key
	cp.Material = append([]byte(nil), key.Material...)
	return &cp
}

func sortEncryptionKeys(keys []models.EncryptionKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
}
