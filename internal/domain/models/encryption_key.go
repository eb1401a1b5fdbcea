package models

import "time"

// EncryptionKeyStatus is the lifecycle state of a managed encryption key.
type EncryptionKeyStatus string

const (
	KeyStatusActive  EncryptionKeyStatus = "active"
	KeyStatusRotated EncryptionKeyStatus = "rotated"
	KeyStatusRevoked EncryptionKeyStatus = "revoked"
)

// EncryptionKey is a managed data-encryption key. Material is the raw key
// bytes and is never serialized; clients see only metadata.
type EncryptionKey struct {
	ID        string              `json:"id"`
	Alias     string              `json:"alias"`
	Version   int                 `json:"version"`
	Status    EncryptionKeyStatus `json:"status"`
	Provider  string              `json:"provider"`
	CreatedAt time.Time           `json:"created_at"`
	RotatedAt *time.Time          `json:"rotated_at,omitempty"`
	Material  []byte              `json:"-"`
}
