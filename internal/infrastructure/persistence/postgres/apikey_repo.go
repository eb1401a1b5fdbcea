package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

// apiKeyRecord is the persisted shape of an API key. Permissions and the
// rate limit are stored as JSON; usage records are not snapshotted, they
// are rebuilt from live traffic.
type apiKeyRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:255;not null"`
	OrganizationID string `gorm:"size:64;index"`
	KeyHash        string `gorm:"size:64;uniqueIndex;not null"`
	Permissions    string `gorm:"type:text;not null"`
	IsActive       bool   `gorm:"not null"`
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	RateRequests   int
	RateWindowSecs int64
	UsageCount     int64
}

func (apiKeyRecord) TableName() string { return "api_key_snapshots" }

// APIKeyRepository is the GORM-backed snapshot store.
type APIKeyRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

var _ service.KeySnapshotStore = (*APIKeyRepository)(nil)

func NewAPIKeyRepository(db *gorm.DB, log logger.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: log.WithComponent("apikey_repository"),
	}
}

// Save upserts the key snapshot.
func (r *APIKeyRepository) Save(ctx context.Context, key *models.APIKey) error {
	record, err := toRecord(key)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save api key snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot. Deleting a missing id is not an error.
func (r *APIKeyRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Delete(&apiKeyRecord{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("failed to delete api key snapshot: %w", err)
	}
	return nil
}

// LoadAll returns every snapshotted key, oldest first.
func (r *APIKeyRepository) LoadAll(ctx context.Context) ([]*models.APIKey, error) {
	var records []apiKeyRecord
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load api key snapshots: %w", err)
	}

	keys := make([]*models.APIKey, 0, len(records))
	for i := range records {
		key, err := fromRecord(&records[i])
		if err != nil {
			r.logger.Warn(ctx, "skipping corrupt api key snapshot",
				logger.String("id", records[i].ID), logger.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func toRecord(key *models.APIKey) (*apiKeyRecord, error) {
	perms, err := json.Marshal(key.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}

	record := &apiKeyRecord{
		ID:             key.ID,
		Name:           key.Name,
		OrganizationID: key.OrganizationID,
		KeyHash:        key.KeyHash,
		Permissions:    string(perms),
		IsActive:       key.IsActive,
		CreatedAt:      key.CreatedAt,
		ExpiresAt:      key.ExpiresAt,
		RateRequests:   key.RateLimit.Requests,
		RateWindowSecs: int64(key.RateLimit.Window / time.Second),
		UsageCount:     key.UsageCount,
	}
	if !key.LastUsedAt.IsZero() {
		t := key.LastUsedAt
		record.LastUsedAt = &t
	}
	return record, nil
}

func fromRecord(record *apiKeyRecord) (*models.APIKey, error) {
	var perms []constants.Permission
	if err := json.Unmarshal([]byte(record.Permissions), &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}

	key := &models.APIKey{
		ID:             record.ID,
		Name:           record.Name,
		OrganizationID: record.OrganizationID,
		KeyHash:        record.KeyHash,
		Permissions:    perms,
		IsActive:       record.IsActive,
		CreatedAt:      record.CreatedAt,
		ExpiresAt:      record.ExpiresAt,
		RateLimit: models.RateLimit{
			Requests: record.RateRequests,
			Window:   time.Duration(record.RateWindowSecs) * time.Second,
		},
		UsageCount: record.UsageCount,
	}
	if record.LastUsedAt != nil {
		key.LastUsedAt = *record.LastUsedAt
	}
	return key, nil
}
